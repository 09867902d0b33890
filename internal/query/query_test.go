package query

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/ledgertest"
	"github.com/ivanoskov/custody_admin/internal/model"
)

type fakeCreds struct {
	mu          sync.Mutex
	token       string
	invalidated []error
}

func (c *fakeCreds) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *fakeCreds) Invalidate(_ context.Context, token string, reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.token {
		return
	}
	c.token = ""
	c.invalidated = append(c.invalidated, reason)
}

func TestNoCredentialNoNetwork(t *testing.T) {
	var calls atomic.Int32
	q := New("users", &fakeCreds{}, func(context.Context, ledger.Auth, Params) ([]model.User, error) {
		calls.Add(1)
		return nil, nil
	}, Options{})

	s := q.Get(context.Background(), nil)
	assert.Equal(t, []model.User{}, s.Items)
	assert.False(t, s.Loading)
	assert.ErrorIs(t, s.Err, ErrUnauthenticated)
	assert.Equal(t, "unauthenticated", s.Message())
	assert.Zero(t, calls.Load())
}

func TestConcurrentGetsShareOneFetch(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	q := New("users", &fakeCreds{token: "t"}, func(context.Context, ledger.Auth, Params) ([]model.User, error) {
		calls.Add(1)
		<-release
		return []model.User{{UserID: "u1"}}, nil
	}, Options{})

	var wg sync.WaitGroup
	results := make([]State[model.User], 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = q.Get(context.Background(), Params{"k": "v"})
		}(i)
	}

	require.Eventually(t, func() bool { return q.Peek(Params{"k": "v"}).Loading }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Len(t, r.Items, 1)
	}
	assert.False(t, q.Peek(Params{"k": "v"}).Loading)
}

func TestCacheIsPerSignatureAndStale(t *testing.T) {
	var calls atomic.Int32
	q := New("transactions", &fakeCreds{token: "t"}, func(_ context.Context, _ ledger.Auth, p Params) ([]model.Transaction, error) {
		calls.Add(1)
		return []model.Transaction{{TransactionID: p["owner"]}}, nil
	}, Options{StaleTime: time.Minute})
	now := time.Now()
	q.now = func() time.Time { return now }

	a := q.Get(context.Background(), Params{"owner": "a"})
	b := q.Get(context.Background(), Params{"owner": "b"})
	assert.Equal(t, "a", a.Items[0].TransactionID)
	assert.Equal(t, "b", b.Items[0].TransactionID)
	assert.NotEqual(t, a.Key, b.Key)

	q.Get(context.Background(), Params{"owner": "a"})
	assert.Equal(t, int32(2), calls.Load())

	now = now.Add(2 * time.Minute)
	q.Get(context.Background(), Params{"owner": "a"})
	assert.Equal(t, int32(3), calls.Load())

	q.Invalidate()
	q.Get(context.Background(), Params{"owner": "a"})
	assert.Equal(t, int32(4), calls.Load())
}

func TestTransportErrorRetriedOnceThenDegrades(t *testing.T) {
	var calls atomic.Int32
	q := New("wallets", &fakeCreds{token: "t"}, func(context.Context, ledger.Auth, Params) ([]model.Wallet, error) {
		calls.Add(1)
		return nil, &ledger.RequestError{Op: "list wallets", Err: errors.New("connection reset")}
	}, Options{Retries: 1})

	s := q.Get(context.Background(), nil)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []model.Wallet{}, s.Items)
	assert.Equal(t, "connection reset", s.Message())

	// ошибки не кэшируются
	q.Get(context.Background(), nil)
	assert.Equal(t, int32(4), calls.Load())
}

func TestServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	q := New("wallets", &fakeCreds{token: "t"}, func(context.Context, ledger.Auth, Params) ([]model.Wallet, error) {
		calls.Add(1)
		return nil, &ledger.ServerError{StatusCode: http.StatusBadRequest, Message: "bad filter"}
	}, Options{Retries: 1})

	s := q.Get(context.Background(), nil)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "bad filter", s.Message())
}

func TestUnauthorizedInvalidatesCredentials(t *testing.T) {
	srv := ledgertest.New(t)
	client, err := ledger.New(ledger.Config{BaseURL: srv.URL()})
	require.NoError(t, err)
	creds := &fakeCreds{token: "stale"}
	r := NewResources(client, creds, Options{})

	s := r.Users(context.Background(), model.UserFilter{})
	assert.ErrorIs(t, s.Err, ledger.ErrUnauthorized)
	require.Len(t, creds.invalidated, 1)

	s = r.Users(context.Background(), model.UserFilter{})
	assert.ErrorIs(t, s.Err, ErrUnauthenticated)
	assert.Len(t, srv.Calls(http.MethodGet, "/user-admin/list"), 1)
}

func TestLateRejectionOfPreviousTokenIsScoped(t *testing.T) {
	creds := &fakeCreds{token: "old"}
	release := make(chan struct{})
	var calls atomic.Int32
	q := New("users", creds, func(_ context.Context, auth ledger.Auth, _ Params) ([]model.User, error) {
		if calls.Add(1) == 1 {
			<-release
			return nil, &ledger.ServerError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized"}
		}
		return []model.User{{UserID: auth.Token}}, nil
	}, Options{})

	done := make(chan State[model.User])
	go func() { done <- q.Get(context.Background(), nil) }()
	require.Eventually(t, func() bool { return q.Peek(nil).Loading }, time.Second, time.Millisecond)

	// оператор вышел и вошёл снова, пока старый запрос висит
	creds.mu.Lock()
	creds.token = "new"
	creds.mu.Unlock()
	q.Invalidate()

	fresh := q.Get(context.Background(), nil)
	require.Len(t, fresh.Items, 1)
	assert.Equal(t, "new", fresh.Items[0].UserID, "a new caller must not join the fetch made with the old token")

	close(release)
	late := <-done
	assert.ErrorIs(t, late.Err, ledger.ErrUnauthorized)
	assert.Equal(t, "new", creds.Token())
	assert.Empty(t, creds.invalidated)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSignatureIgnoresOrderAndEmptyValues(t *testing.T) {
	assert.Equal(t,
		Signature("users", Params{"status": "active", "search": "jane"}),
		Signature("users", Params{"search": "jane", "status": "active", "min": ""}))
	assert.Equal(t, "users", Signature("users", Params{"search": ""}))
}
