package query

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ivanoskov/custody_admin/internal/model"
)

// SortByNewest возвращает копию, отсортированную по убыванию created_at.
func SortByNewest(txs []model.Transaction) []model.Transaction {
	out := make([]model.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// CurrentBalance balance_after самой поздней транзакции, ноль без транзакций.
// Порядок во входном срезе не важен и не меняется.
func CurrentBalance(txs []model.Transaction) decimal.Decimal {
	if len(txs) == 0 {
		return decimal.Zero
	}
	return SortByNewest(txs)[0].BalanceAfter
}

var hundred = decimal.NewFromInt(100)

func SummarizeWallets(wallets []model.Wallet) model.WalletSummary {
	s := model.WalletSummary{Count: len(wallets)}
	for _, w := range wallets {
		s.TotalBalance = s.TotalBalance.Add(w.Balance)
		s.TotalCredit = s.TotalCredit.Add(w.TotalCredit)
		s.TotalDebit = s.TotalDebit.Add(w.TotalDebit)
		if w.TotalCredit.IsPositive() {
			s.WalletsWithCredit++
		}
		if w.TotalDebit.IsPositive() {
			s.WalletsWithDebit++
		}
	}
	change := s.TotalCredit.Sub(s.TotalDebit)
	s.BalanceChangePositive = !change.IsNegative()
	if !s.TotalBalance.IsZero() {
		s.BalanceChange = decimal.Min(change.Div(s.TotalBalance).Mul(hundred).Abs(), hundred)
	}
	return s
}

// Paginate страницы нумеруются с 1; page за пределами приводится к ближайшей.
func Paginate[T any](items []T, page, perPage int) ([]T, int) {
	if perPage <= 0 {
		perPage = WalletsPerPage
	}
	total := (len(items) + perPage - 1) / perPage
	if total == 0 {
		return []T{}, 0
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	start := (page - 1) * perPage
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total
}
