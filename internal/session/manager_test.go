package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/ledgertest"
	"github.com/ivanoskov/custody_admin/internal/model"
	"github.com/ivanoskov/custody_admin/internal/store"
)

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewInMemoryBadgerStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newManager(t *testing.T, st store.Store, auth Authenticator, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	m, err := NewManager(context.Background(), st, auth, opts...)
	require.NoError(t, err)
	return m
}

func ledgerClient(t *testing.T, url string) *ledger.Client {
	t.Helper()
	c, err := ledger.New(ledger.Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func TestLoginPersistsSession(t *testing.T) {
	srv := ledgertest.New(t)
	st := newStore(t)
	m := newManager(t, st, ledgerClient(t, srv.URL()))

	assert.False(t, m.IsAuthenticated())

	s, err := m.Login(context.Background(), ledgertest.Identifier, ledgertest.Password)
	require.NoError(t, err)
	assert.Equal(t, ledgertest.Token, s.Token)
	assert.True(t, m.IsAuthenticated())

	op, ok := m.Identity()
	require.True(t, ok)
	assert.Equal(t, ledgertest.Identifier, op.Email)

	// новая копия менеджера видит ту же сессию
	restored := newManager(t, st, ledgerClient(t, srv.URL()))
	assert.Equal(t, ledgertest.Token, restored.Token())
}

func TestLoginErrorKindsAreDistinct(t *testing.T) {
	srv := ledgertest.New(t)
	m := newManager(t, newStore(t), ledgerClient(t, srv.URL()))

	_, err := m.Login(context.Background(), ledgertest.Identifier, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NotErrorIs(t, err, ErrNetworkFailure)
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Invalid credentials", ae.Message)

	offline := newManager(t, newStore(t), ledgerClient(t, "http://127.0.0.1:1"))
	_, err = offline.Login(context.Background(), ledgertest.Identifier, ledgertest.Password)
	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	srv.Override(http.MethodPost, "/auth/signin", func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "maintenance"})
	})
	_, err = m.Login(context.Background(), ledgertest.Identifier, ledgertest.Password)
	assert.ErrorIs(t, err, ErrNetworkFailure)
}

func TestFailedLoginKeepsExistingSession(t *testing.T) {
	srv := ledgertest.New(t)
	st := newStore(t)
	m := newManager(t, st, ledgerClient(t, srv.URL()))

	_, err := m.Login(context.Background(), ledgertest.Identifier, ledgertest.Password)
	require.NoError(t, err)

	_, err = m.Login(context.Background(), ledgertest.Identifier, "wrong")
	require.Error(t, err)
	assert.Equal(t, ledgertest.Token, m.Token())

	stored, err := store.GetString(context.Background(), st, store.KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, ledgertest.Token, stored)
}

func TestLogoutIsIdempotentAndNotifies(t *testing.T) {
	srv := ledgertest.New(t)
	st := newStore(t)
	m := newManager(t, st, ledgerClient(t, srv.URL()))

	var reasons []error
	m.OnInvalidate(func(reason error) { reasons = append(reasons, reason) })

	_, err := m.Login(context.Background(), ledgertest.Identifier, ledgertest.Password)
	require.NoError(t, err)

	require.NoError(t, m.Logout(context.Background()))
	require.NoError(t, m.Logout(context.Background()))

	assert.False(t, m.IsAuthenticated())
	require.Len(t, reasons, 1)
	assert.ErrorIs(t, reasons[0], ErrLoggedOut)

	_, err = st.Get(context.Background(), store.KeyAuthToken)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Get(context.Background(), store.KeyAuthUser)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInvalidateOnRejectedCredential(t *testing.T) {
	srv := ledgertest.New(t)
	m := newManager(t, newStore(t), ledgerClient(t, srv.URL()))
	_, err := m.Login(context.Background(), ledgertest.Identifier, ledgertest.Password)
	require.NoError(t, err)

	var got error
	m.OnInvalidate(func(reason error) { got = reason })

	m.Invalidate(context.Background(), ledgertest.Token, ledger.ErrUnauthorized)
	m.Invalidate(context.Background(), ledgertest.Token, errors.New("second call ignored"))

	assert.False(t, m.IsAuthenticated())
	assert.ErrorIs(t, got, ledger.ErrUnauthorized)
}

type sequenceAuth struct {
	mu     sync.Mutex
	tokens []string
}

func (s *sequenceAuth) SignIn(context.Context, string, string) (string, model.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := s.tokens[0]
	s.tokens = s.tokens[1:]
	return tok, model.Operator{Email: "ops@example.com"}, nil
}

func TestRejectionOfPreviousTokenKeepsNewSession(t *testing.T) {
	st := newStore(t)
	m := newManager(t, st, &sequenceAuth{tokens: []string{"old", "new"}})

	_, err := m.Login(context.Background(), "ops", "pw")
	require.NoError(t, err)
	require.NoError(t, m.Logout(context.Background()))
	_, err = m.Login(context.Background(), "ops", "pw")
	require.NoError(t, err)

	var notified int
	m.OnInvalidate(func(error) { notified++ })

	// ответ 401 на запрос, отправленный ещё со старым токеном
	m.Invalidate(context.Background(), "old", ledger.ErrUnauthorized)

	assert.Equal(t, "new", m.Token())
	assert.Zero(t, notified)
	stored, err := store.GetString(context.Background(), st, store.KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "new", stored)

	m.Invalidate(context.Background(), "new", ledger.ErrUnauthorized)
	assert.False(t, m.IsAuthenticated())
	assert.Equal(t, 1, notified)
}

type stubAuth struct {
	token string
}

func (s stubAuth) SignIn(context.Context, string, string) (string, model.Operator, error) {
	return s.token, model.Operator{Email: "ops@example.com"}, nil
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestExpiredJWTInvalidates(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	token := signed(t, now.Add(time.Minute))

	st := newStore(t)
	m := newManager(t, st, stubAuth{token: token}, WithClock(clock))
	_, err := m.Login(context.Background(), "ops", "pw")
	require.NoError(t, err)
	assert.True(t, m.IsAuthenticated())

	var mu sync.Mutex
	var got error
	m.OnInvalidate(func(reason error) { mu.Lock(); got = reason; mu.Unlock() })

	now = now.Add(2 * time.Minute)
	assert.False(t, m.IsAuthenticated())
	mu.Lock()
	assert.ErrorIs(t, got, ErrExpired)
	mu.Unlock()

	// при восстановлении истёкший токен тоже отбрасывается
	require.NoError(t, store.SetString(context.Background(), st, store.KeyAuthToken, token))
	restored := newManager(t, st, stubAuth{}, WithClock(clock))
	assert.False(t, restored.IsAuthenticated())
}

func TestOpaqueTokenNeverExpires(t *testing.T) {
	m := newManager(t, newStore(t), stubAuth{token: "opaque-token"})
	_, err := m.Login(context.Background(), "ops", "pw")
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", m.Token())
}
