package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type WalletOwner struct {
	Firstname   string `json:"firstname"`
	Middlename  string `json:"middlename"`
	Lastname    string `json:"lastname"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Username    string `json:"username"`
}

func (o WalletOwner) FullName() string {
	return strings.Join(strings.Fields(o.Firstname+" "+o.Middlename+" "+o.Lastname), " ")
}

// Wallet кошелёк пользователя в том виде, в каком его отдаёт API.
type Wallet struct {
	WalletID         string          `json:"wallet_id"`
	Balance          decimal.Decimal `json:"balance"`
	TotalCredit      decimal.Decimal `json:"total_credit"`
	TotalDebit       decimal.Decimal `json:"total_debit"`
	Frozen           bool            `json:"frozen"`
	WalletPinChanged bool            `json:"wallet_pin_changed"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Owner            WalletOwner     `json:"owner"`
}

// WalletFilter поиск, статус и диапазон баланса. Пустые границы не применяются.
type WalletFilter struct {
	Search     string
	Status     string
	MinBalance *decimal.Decimal
	MaxBalance *decimal.Decimal
}

func (f WalletFilter) Match(w Wallet) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		name := strings.ToLower(w.Owner.Firstname + " " + w.Owner.Lastname)
		if !strings.Contains(strings.ToLower(w.WalletID), q) &&
			!strings.Contains(strings.ToLower(w.Owner.Email), q) &&
			!strings.Contains(name, q) {
			return false
		}
	}
	switch strings.ToLower(f.Status) {
	case StatusActive:
		if w.Frozen {
			return false
		}
	case StatusFrozen:
		if !w.Frozen {
			return false
		}
	}
	if f.MinBalance != nil && w.Balance.LessThan(*f.MinBalance) {
		return false
	}
	if f.MaxBalance != nil && w.Balance.GreaterThan(*f.MaxBalance) {
		return false
	}
	return true
}

func (f WalletFilter) Params() map[string]string {
	p := map[string]string{
		"search": strings.ToLower(strings.TrimSpace(f.Search)),
		"status": strings.ToLower(f.Status),
	}
	if f.MinBalance != nil {
		p["min"] = f.MinBalance.String()
	}
	if f.MaxBalance != nil {
		p["max"] = f.MaxBalance.String()
	}
	return p
}

// WalletSummary агрегаты по списку кошельков.
type WalletSummary struct {
	Count             int
	TotalBalance      decimal.Decimal
	TotalCredit       decimal.Decimal
	TotalDebit        decimal.Decimal
	WalletsWithCredit int
	WalletsWithDebit  int
	// BalanceChange |кредит - дебет| / баланс в процентах, не более 100.
	BalanceChange         decimal.Decimal
	BalanceChangePositive bool
}
