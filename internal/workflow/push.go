package workflow

import (
	"context"
	"strings"

	"github.com/ivanoskov/custody_admin/internal/ledger"
)

const (
	AudienceAll    = "all"
	AudienceSingle = "single"
)

type PushForm struct {
	Audience string `json:"audience" validate:"oneof=all single"`
	Email    string `json:"email" validate:"omitempty,email"`
	Title    string `json:"title" validate:"nonblank"`
	Body     string `json:"body" validate:"nonblank"`
}

type PushAPI interface {
	SendPush(ctx context.Context, auth ledger.Auth, req ledger.PushRequest) (ledger.Result, error)
}

// SendPush push-уведомление всем пользователям или одному по почте.
type SendPush struct {
	api PushAPI
}

func NewSendPush(api PushAPI) *SendPush { return &SendPush{api: api} }

func (p *SendPush) Name() string { return "send_push" }

func (p *SendPush) NewForm(context.Context) PushForm { return PushForm{Audience: AudienceAll} }

// audienceOnly сбрасывает почту, если рассылка всем: оставшийся от
// прежнего выбора адрес не участвует ни в проверке, ни в ключе.
func audienceOnly(f PushForm) PushForm {
	if f.Audience != AudienceSingle {
		f.Email = ""
	}
	return f
}

func (p *SendPush) Validate(f PushForm) error {
	f = audienceOnly(f)
	err := validateForm(f)
	if f.Audience == AudienceSingle && strings.TrimSpace(f.Email) == "" {
		verr, ok := err.(*ValidationError)
		if !ok {
			verr = &ValidationError{Fields: map[string]string{}}
		}
		verr.Fields["email"] = "is required"
		return verr
	}
	return err
}

func (p *SendPush) Fingerprint(f PushForm) string {
	f = audienceOnly(f)
	return fingerprint(f.Audience, f.Email, f.Title, f.Body)
}

func (p *SendPush) Submit(ctx context.Context, auth ledger.Auth, f PushForm) (ledger.Result, error) {
	req := ledger.PushRequest{Title: f.Title, Body: f.Body}
	if f.Audience == AudienceSingle {
		req.Email = strings.TrimSpace(f.Email)
	}
	return p.api.SendPush(ctx, auth, req)
}

func (p *SendPush) FailureMessage(err error) string {
	return MessageFor(err, "Failed to send notification", false)
}
