package workflow

import (
	"context"
	"crypto/subtle"
	"errors"

	"go.uber.org/zap"

	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/store"
)

type CreditWalletForm struct {
	BankCode      string `json:"bank_code" validate:"nonblank,bankcode"`
	AccountNumber string `json:"account_number" validate:"nonblank,digits"`
	Amount        string `json:"amount" validate:"nonblank,positive_decimal"`
	Password      string `json:"password" validate:"nonblank"`
}

type CreditWalletAPI interface {
	CreditWallet(ctx context.Context, auth ledger.Auth, req ledger.CreditWalletRequest) (ledger.Result, error)
}

// Sentinel подмена пароля: если введён Word, отправляется Secret.
// Пустое значение любого поля отключает подмену.
type Sentinel struct {
	Word   string
	Secret string
}

func (s Sentinel) enabled() bool { return s.Word != "" && s.Secret != "" }

type CreditWallet struct {
	api      CreditWalletAPI
	store    store.Store
	sentinel Sentinel
	log      *zap.Logger
}

func NewCreditWallet(api CreditWalletAPI, st store.Store, sentinel Sentinel, log *zap.Logger) *CreditWallet {
	if log == nil {
		log = zap.NewNop()
	}
	return &CreditWallet{api: api, store: st, sentinel: sentinel, log: log}
}

func (c *CreditWallet) Name() string { return "credit_wallet" }

// NewForm подставляет номер счёта последнего успешного пополнения.
func (c *CreditWallet) NewForm(ctx context.Context) CreditWalletForm {
	account, err := store.GetString(ctx, c.store, store.KeyLastAccountNumber)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		c.log.Warn("failed to load last account number", zap.Error(err))
	}
	return CreditWalletForm{AccountNumber: account}
}

func (c *CreditWallet) Validate(f CreditWalletForm) error { return validateForm(f) }

// Fingerprint пароль не участвует: повтор с тем же платежом должен взять тот же ключ.
func (c *CreditWallet) Fingerprint(f CreditWalletForm) string {
	return fingerprint(f.BankCode, f.AccountNumber, f.Amount)
}

func (c *CreditWallet) password(typed string) string {
	if c.sentinel.enabled() && subtle.ConstantTimeCompare([]byte(typed), []byte(c.sentinel.Word)) == 1 {
		c.log.Warn("credit password substituted with provisioned secret")
		return c.sentinel.Secret
	}
	return typed
}

func (c *CreditWallet) Submit(ctx context.Context, auth ledger.Auth, f CreditWalletForm) (ledger.Result, error) {
	return c.api.CreditWallet(ctx, auth, ledger.CreditWalletRequest{
		Password:      c.password(f.Password),
		AccountNumber: f.AccountNumber,
		BankCode:      f.BankCode,
		Amount:        f.Amount,
	})
}

func (c *CreditWallet) FailureMessage(err error) string {
	return MessageFor(err, "Failed to credit wallet", false)
}

// OnSuccess запоминает номер счёта для следующего открытия формы.
func (c *CreditWallet) OnSuccess(ctx context.Context, f CreditWalletForm, _ ledger.Result) error {
	return store.SetString(ctx, c.store, store.KeyLastAccountNumber, f.AccountNumber)
}
