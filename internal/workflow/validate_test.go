package workflow

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanoskov/custody_admin/internal/ledger"
)

func TestSanitizeDecimal(t *testing.T) {
	assert.Equal(t, "1500.50", SanitizeDecimal("", "₦1,500.50"))
	assert.Equal(t, "12.5", SanitizeDecimal("12.5", "12.5.1"))
	assert.Equal(t, "", SanitizeDecimal("", "abc"))
}

func TestSanitizeDigits(t *testing.T) {
	assert.Equal(t, "5000", SanitizeDigits("5,000"))
	assert.Equal(t, "123", SanitizeDigits("1a2b3"))
}

func TestPositiveNumbers(t *testing.T) {
	assert.True(t, IsPositiveDecimal("0.01"))
	assert.True(t, IsPositiveDecimal("10"))
	assert.False(t, IsPositiveDecimal("0"))
	assert.False(t, IsPositiveDecimal("+1"))
	assert.False(t, IsPositiveDecimal(".5"))

	n, ok := ParsePositiveInt("5000")
	assert.True(t, ok)
	assert.Equal(t, int64(5000), n)
	_, ok = ParsePositiveInt("0")
	assert.False(t, ok)
	_, ok = ParsePositiveInt("99999999999999999999")
	assert.False(t, ok)
}

func TestMessagePriority(t *testing.T) {
	both := &ledger.ServerError{StatusCode: http.StatusBadRequest, Message: "from message", ErrorText: "from error"}
	assert.Equal(t, "from message", MessageFor(both, "fallback", false))
	assert.Equal(t, "from error", MessageFor(both, "fallback", true))

	onlyError := &ledger.ServerError{StatusCode: http.StatusBadRequest, ErrorText: "from error"}
	assert.Equal(t, "from error", MessageFor(onlyError, "fallback", false))

	empty := &ledger.ServerError{StatusCode: http.StatusInternalServerError}
	assert.Equal(t, "fallback", MessageFor(empty, "fallback", false))

	transport := &ledger.RequestError{Op: "x", Err: errors.New("connection refused")}
	assert.Equal(t, "connection refused", MessageFor(transport, "fallback", false))

	assert.Equal(t, "fallback", MessageFor(errors.New("boom"), "fallback", false))
}

func TestPushValidation(t *testing.T) {
	p := NewSendPush(nil)
	f := p.NewForm(context.Background())
	f.Title, f.Body = "Maintenance", "Back at 10:00"
	assert.NoError(t, p.Validate(f))

	f.Audience = AudienceSingle
	var verr *ValidationError
	require.ErrorAs(t, p.Validate(f), &verr)
	assert.Contains(t, verr.Fields, "email")

	f.Email = "not-an-email"
	require.ErrorAs(t, p.Validate(f), &verr)
	assert.Equal(t, "must be an email address", verr.Fields["email"])

	f.Email = "jane@example.com"
	assert.NoError(t, p.Validate(f))

	f.Audience = "everyone"
	require.ErrorAs(t, p.Validate(f), &verr)
	assert.Contains(t, verr.Fields, "audience")
}

func TestBroadcastIgnoresStaleEmail(t *testing.T) {
	p := NewSendPush(nil)
	f := PushForm{Audience: AudienceSingle, Email: "jane@", Title: "Maintenance", Body: "Back at 10:00"}
	var verr *ValidationError
	require.ErrorAs(t, p.Validate(f), &verr)

	// оператор передумал и выбрал рассылку всем
	f.Audience = AudienceAll
	assert.NoError(t, p.Validate(f))
	assert.Equal(t, p.Fingerprint(PushForm{Audience: AudienceAll, Title: f.Title, Body: f.Body}), p.Fingerprint(f))
}

func TestValidationErrorListsFields(t *testing.T) {
	err := NewCreditWallet(nil, nil, Sentinel{}, nil).Validate(CreditWalletForm{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 4)
	assert.Equal(t, "is required", verr.Fields["bank_code"])
	assert.Contains(t, err.Error(), "amount: is required")
}
