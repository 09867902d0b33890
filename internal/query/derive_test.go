package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ivanoskov/custody_admin/internal/model"
)

func TestCurrentBalanceIgnoresInputOrder(t *testing.T) {
	t1 := model.Transaction{TransactionID: "t1", CreatedAt: time.Unix(100, 0), BalanceAfter: d("100")}
	t2 := model.Transaction{TransactionID: "t2", CreatedAt: time.Unix(200, 0), BalanceAfter: d("250")}

	for _, txs := range [][]model.Transaction{{t1, t2}, {t2, t1}} {
		assert.Equal(t, "250", CurrentBalance(txs).String())
	}

	in := []model.Transaction{t1, t2}
	CurrentBalance(in)
	assert.Equal(t, "t1", in[0].TransactionID)
}

func TestCurrentBalanceEmptyIsZero(t *testing.T) {
	assert.Equal(t, "0", CurrentBalance(nil).String())
}

func TestPaginate(t *testing.T) {
	items := make([]int, 250)
	for i := range items {
		items[i] = i
	}

	page, total := Paginate(items, 3, 100)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 50)
	assert.Equal(t, 200, page[0])

	page, _ = Paginate(items, 0, 100)
	assert.Equal(t, 0, page[0])
	page, _ = Paginate(items, 99, 100)
	assert.Equal(t, 200, page[0])

	page, total = Paginate([]int{}, 1, 100)
	assert.Empty(t, page)
	assert.Zero(t, total)
}

func TestSummaryCapsChangeAt100(t *testing.T) {
	s := SummarizeWallets([]model.Wallet{{Balance: d("10"), TotalCredit: d("0"), TotalDebit: d("500")}})
	assert.Equal(t, "100", s.BalanceChange.String())
	assert.False(t, s.BalanceChangePositive)

	empty := SummarizeWallets(nil)
	assert.True(t, empty.BalanceChange.IsZero())
}
