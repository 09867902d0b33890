// Package session хранит учётные данные оператора и сообщает об их потере.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/metrics"
	"github.com/ivanoskov/custody_admin/internal/model"
	"github.com/ivanoskov/custody_admin/internal/store"
)

// Authenticator обменивает логин и пароль на токен.
type Authenticator interface {
	SignIn(ctx context.Context, identifier, password string) (string, model.Operator, error)
}

// Session токен и профиль. Профиль имеет смысл только при наличии токена.
type Session struct {
	Token    string
	Operator model.Operator
}

func (s Session) Authenticated() bool { return s.Token != "" }

// Listener вызывается после потери сессии, reason объясняет причину.
type Listener func(reason error)

type Manager struct {
	store   store.Store
	auth    Authenticator
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu        sync.RWMutex
	current   Session
	listeners []Listener
}

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

func WithMetrics(mt *metrics.Metrics) Option { return func(m *Manager) { m.metrics = mt } }

// WithClock нужен тестам истечения токена.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager восстанавливает сохранённую сессию, если она есть и не истекла.
func NewManager(ctx context.Context, st store.Store, auth Authenticator, opts ...Option) (*Manager, error) {
	m := &Manager{
		store: st,
		auth:  auth,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.restore(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) restore(ctx context.Context) error {
	token, err := store.GetString(ctx, m.store, store.KeyAuthToken)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	var op model.Operator
	if err := store.GetJSON(ctx, m.store, store.KeyAuthUser, &op); err != nil && !errors.Is(err, store.ErrNotFound) {
		m.log.Warn("stored operator profile unreadable", zap.Error(err))
	}

	if m.expired(token) {
		m.log.Info("stored credential expired, discarding")
		_ = m.clearStore(ctx)
		return nil
	}

	m.current = Session{Token: token, Operator: op}
	m.log.Info("session restored", zap.String("operator", op.Email))
	return nil
}

// Login при ошибке не трогает ни сохранённую, ни текущую сессию.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (Session, error) {
	token, op, err := m.auth.SignIn(ctx, identifier, secret)
	if err != nil {
		authErr := classify(err)
		m.metrics.SessionEvent("login_" + authErr.Kind.String())
		m.log.Info("login rejected",
			zap.String("identifier", identifier),
			zap.Stringer("kind", authErr.Kind),
			zap.Error(err))
		return Session{}, authErr
	}

	if err := store.SetString(ctx, m.store, store.KeyAuthToken, token); err != nil {
		return Session{}, fmt.Errorf("failed to persist session: %w", err)
	}
	if err := store.SetJSON(ctx, m.store, store.KeyAuthUser, op); err != nil {
		_ = m.store.Delete(ctx, store.KeyAuthToken)
		return Session{}, fmt.Errorf("failed to persist session: %w", err)
	}

	s := Session{Token: token, Operator: op}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	m.metrics.SessionEvent("login")
	m.log.Info("operator logged in", zap.String("operator", op.Email))
	return s, nil
}

func classify(err error) *AuthError {
	var se *ledger.ServerError
	if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError {
		msg := se.Text()
		if msg == "" {
			msg = "invalid credentials"
		}
		return &AuthError{Kind: InvalidCredentials, Message: msg, Err: err}
	}
	msg := "server unreachable"
	if se != nil && se.Text() != "" {
		msg = se.Text()
	}
	return &AuthError{Kind: NetworkFailure, Message: msg, Err: err}
}

// Logout идемпотентен. Память очищается даже если хранилище вернуло ошибку.
func (m *Manager) Logout(ctx context.Context) error {
	m.metrics.SessionEvent("logout")
	return m.drop(ctx, "", ErrLoggedOut)
}

// Invalidate вызывают зависимые компоненты, когда сервер отверг token.
// Отказ по токену прежней сессии текущую не трогает.
func (m *Manager) Invalidate(ctx context.Context, token string, reason error) {
	m.mu.RLock()
	current := m.current.Token
	m.mu.RUnlock()
	if current == "" || current != token {
		m.log.Debug("stale invalidation ignored", zap.Error(reason))
		return
	}
	m.metrics.SessionEvent("invalidated")
	m.log.Warn("session invalidated", zap.Error(reason))
	if err := m.drop(ctx, token, reason); err != nil {
		m.log.Error("failed to clear stored session", zap.Error(err))
	}
}

// drop сбрасывает сессию. Непустой match сбрасывает её, только если токен не сменился.
func (m *Manager) drop(ctx context.Context, match string, reason error) error {
	m.mu.Lock()
	if match != "" && m.current.Token != match {
		m.mu.Unlock()
		return nil
	}
	had := m.current.Authenticated()
	m.current = Session{}
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	err := m.clearStore(ctx)
	if had {
		for _, l := range listeners {
			l(reason)
		}
	}
	return err
}

func (m *Manager) clearStore(ctx context.Context) error {
	return errors.Join(
		m.store.Delete(ctx, store.KeyAuthToken),
		m.store.Delete(ctx, store.KeyAuthUser),
	)
}

// OnInvalidate подписывает на выход и инвалидацию сессии.
func (m *Manager) OnInvalidate(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Manager) IsAuthenticated() bool {
	return m.Token() != ""
}

// Token возвращает текущий токен или пустую строку. Истёкший токен сбрасывает сессию.
func (m *Manager) Token() string {
	m.mu.RLock()
	token := m.current.Token
	m.mu.RUnlock()
	if token == "" {
		return ""
	}
	if m.expired(token) {
		m.Invalidate(context.Background(), token, ErrExpired)
		return ""
	}
	return token
}

func (m *Manager) Identity() (model.Operator, bool) {
	s := m.Snapshot()
	return s.Operator, s.Authenticated()
}

func (m *Manager) Snapshot() Session {
	if m.Token() == "" {
		return Session{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// expired проверяет exp, если токен похож на JWT. Непрозрачный токен считается действующим.
func (m *Manager) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !m.now().Before(exp.Time)
}
