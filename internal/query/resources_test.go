package query

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/ledgertest"
	"github.com/ivanoskov/custody_admin/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newResources(t *testing.T) (*Resources, *ledgertest.Server) {
	t.Helper()
	srv := ledgertest.New(t)
	srv.Users = []model.User{
		{UserID: "u1", Firstname: "Jane", Lastname: "Doe", Email: "jane@example.com", ActiveStatus: "ACTIVE"},
		{UserID: "u2", Firstname: "Janet", Lastname: "Jackson", Email: "janet@example.com", ActiveStatus: "INACTIVE"},
		{UserID: "u3", Firstname: "Bob", Lastname: "Stone", Email: "bob@example.com", ActiveStatus: "ACTIVE"},
	}
	srv.Wallets = []model.Wallet{
		{WalletID: "w1", Balance: d("100"), TotalCredit: d("300"), TotalDebit: d("200")},
		{WalletID: "w2", Balance: d("900"), TotalCredit: d("0"), TotalDebit: d("0"), Frozen: true},
	}
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	srv.Transactions["u1"] = []model.Transaction{
		{TransactionID: "t1", CreatedAt: t0, Type: model.TransactionCredit, BalanceAfter: d("100")},
		{TransactionID: "t2", CreatedAt: t0.Add(time.Hour), Type: model.TransactionCredit, BalanceAfter: d("250")},
		{TransactionID: "t0", CreatedAt: t0.Add(-time.Hour), Type: model.TransactionDebit, BalanceAfter: d("0")},
	}
	client, err := ledger.New(ledger.Config{BaseURL: srv.URL()})
	require.NoError(t, err)
	return NewResources(client, &fakeCreds{token: ledgertest.Token}, Options{}), srv
}

func TestFiltersShareOneFetch(t *testing.T) {
	r, srv := newResources(t)
	ctx := context.Background()

	all := r.Users(ctx, model.UserFilter{})
	active := r.Users(ctx, model.UserFilter{Status: model.StatusActive})
	jane := r.Users(ctx, model.UserFilter{Search: "jane", Status: model.StatusActive})

	assert.Len(t, all.Items, 3)
	assert.Len(t, active.Items, 2)
	require.Len(t, jane.Items, 1)
	assert.Equal(t, "u1", jane.Items[0].UserID)
	assert.NotEqual(t, all.Key, jane.Key)
	assert.Len(t, srv.Calls(http.MethodGet, "/user-admin/list"), 1)
}

func TestSearchUsersRanksClosestFirst(t *testing.T) {
	r, _ := newResources(t)

	s := r.SearchUsers(context.Background(), "janet", 5)
	require.Len(t, s.Items, 1)
	assert.Equal(t, "u2", s.Items[0].UserID)

	s = r.SearchUsers(context.Background(), "jane", 5)
	require.Len(t, s.Items, 2)
	assert.Equal(t, "u1", s.Items[0].UserID)

	assert.Empty(t, r.SearchUsers(context.Background(), "  ", 5).Items)
}

func TestWalletsFilterAndSummary(t *testing.T) {
	r, _ := newResources(t)
	ctx := context.Background()

	frozen := r.Wallets(ctx, model.WalletFilter{Status: model.StatusFrozen})
	require.Len(t, frozen.Items, 1)
	assert.Equal(t, "w2", frozen.Items[0].WalletID)

	sum := SummarizeWallets(r.AllWallets(ctx).Items)
	assert.Equal(t, 2, sum.Count)
	assert.True(t, sum.TotalBalance.Equal(d("1000")))
	assert.Equal(t, 1, sum.WalletsWithCredit)
	assert.Equal(t, 1, sum.WalletsWithDebit)
	assert.True(t, sum.BalanceChange.Equal(d("10")), sum.BalanceChange.String())
	assert.True(t, sum.BalanceChangePositive)
}

func TestUserDetailDerivesBalance(t *testing.T) {
	r, _ := newResources(t)

	detail, err := r.UserDetail(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", detail.User.Firstname)
	assert.True(t, detail.Balance.Equal(d("250")))
	assert.Equal(t, 2, detail.CreditCount)
	assert.Equal(t, 1, detail.DebitCount)
	assert.Equal(t, "t2", detail.Transactions[0].TransactionID)

	_, err = r.UserDetail(context.Background(), "nobody")
	assert.Error(t, err)
}

func TestInvalidateDropsCaches(t *testing.T) {
	r, srv := newResources(t)
	ctx := context.Background()

	r.Users(ctx, model.UserFilter{})
	r.Invalidate()
	r.Users(ctx, model.UserFilter{})
	assert.Len(t, srv.Calls(http.MethodGet, "/user-admin/list"), 2)
}
