package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/model"
)

// DefaultTransferDescription начальное описание перевода.
const DefaultTransferDescription = "misc"

type TransferForm struct {
	Recipient   *model.User `json:"recipient" validate:"required"`
	Amount      string      `json:"amount" validate:"nonblank,positive_int"`
	Description string      `json:"description" validate:"nonblank"`
}

type TransferAPI interface {
	CreditUser(ctx context.Context, auth ledger.Auth, userID string, req ledger.CreditUserRequest) (ledger.Result, error)
}

// TransferFunds перевод на кошелёк пользователя. Получатель выбирается через поиск.
type TransferFunds struct {
	api TransferAPI
}

func NewTransferFunds(api TransferAPI) *TransferFunds {
	return &TransferFunds{api: api}
}

func (t *TransferFunds) Name() string { return "transfer_funds" }

func (t *TransferFunds) NewForm(context.Context) TransferForm {
	return TransferForm{Description: DefaultTransferDescription}
}

func (t *TransferFunds) Validate(f TransferForm) error {
	if err := validateForm(f); err != nil {
		return err
	}
	if strings.TrimSpace(f.Recipient.UserID) == "" {
		return &ValidationError{Fields: map[string]string{"recipient": "is required"}}
	}
	return nil
}

func (t *TransferFunds) Fingerprint(f TransferForm) string {
	id := ""
	if f.Recipient != nil {
		id = f.Recipient.UserID
	}
	return fingerprint(id, f.Amount, f.Description)
}

func (t *TransferFunds) Submit(ctx context.Context, auth ledger.Auth, f TransferForm) (ledger.Result, error) {
	amount, ok := ParsePositiveInt(f.Amount)
	if !ok {
		return ledger.Result{}, fmt.Errorf("amount %q is not a positive integer", f.Amount)
	}
	return t.api.CreditUser(ctx, auth, f.Recipient.UserID, ledger.CreditUserRequest{
		Amount:      amount,
		Description: f.Description,
	})
}

func (t *TransferFunds) FailureMessage(err error) string {
	return MessageFor(err, "Failed to transfer funds", false)
}
