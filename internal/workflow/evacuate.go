package workflow

import (
	"context"
	"time"

	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/model"
)

type EvacuateForm struct {
	Rail model.Rail `json:"from" validate:"rail"`
}

type EvacuateAPI interface {
	Evacuate(ctx context.Context, auth ledger.Auth, rail model.Rail) (model.EvacuationReport, error)
}

// EvacuateFunds выводит все средства со шлюза. Отчёт показывается без изменений.
type EvacuateFunds struct {
	api EvacuateAPI
	now func() time.Time
}

func NewEvacuateFunds(api EvacuateAPI) *EvacuateFunds {
	return &EvacuateFunds{api: api, now: time.Now}
}

func (e *EvacuateFunds) Name() string { return "evacuate_funds" }

func (e *EvacuateFunds) NewForm(context.Context) EvacuateForm { return EvacuateForm{} }

func (e *EvacuateFunds) Validate(f EvacuateForm) error { return validateForm(f) }

func (e *EvacuateFunds) Fingerprint(f EvacuateForm) string { return fingerprint(string(f.Rail)) }

func (e *EvacuateFunds) Submit(ctx context.Context, auth ledger.Auth, f EvacuateForm) (model.EvacuationReport, error) {
	report, err := e.api.Evacuate(ctx, auth, f.Rail)
	if err != nil {
		return model.EvacuationReport{}, err
	}
	report.CompletedAt = e.now()
	return report, nil
}

// FailureMessage сервер кладёт причину в поле "error".
func (e *EvacuateFunds) FailureMessage(err error) string {
	return MessageFor(err, "Failed to evacuate funds", true)
}
