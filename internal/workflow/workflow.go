// Package workflow машина состояний финансовой операции:
// Idle -> Validating -> Submitting -> Succeeded | Failed -> Idle.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/metrics"
	"github.com/ivanoskov/custody_admin/internal/store"
)

type Phase int

const (
	Idle Phase = iota
	Validating
	Submitting
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Credentials то, что workflow нужно от менеджера сессии.
type Credentials interface {
	Token() string
	// Invalidate сообщает, что сервер отверг token.
	Invalidate(ctx context.Context, token string, reason error)
}

// Operation описывает конкретную операцию: форму, проверку и запрос.
type Operation[F, R any] interface {
	Name() string
	// NewForm вызывается при открытии и после успешной отправки.
	NewForm(ctx context.Context) F
	Validate(form F) error
	// Fingerprint идентифицирует содержимое запроса для ключа идемпотентности.
	Fingerprint(form F) string
	Submit(ctx context.Context, auth ledger.Auth, form F) (R, error)
	FailureMessage(err error) string
}

// SuccessHook необязательное действие после успешной отправки, до очистки формы.
type SuccessHook[F, R any] interface {
	OnSuccess(ctx context.Context, form F, result R) error
}

// Outcome итог завершённой отправки.
type Outcome[R any] struct {
	Success        bool
	Result         R
	Message        string
	Err            error
	IdempotencyKey string
	SettledAt      time.Time
}

// Snapshot согласованный срез состояния для отображения.
type Snapshot[F, R any] struct {
	Phase     Phase
	Form      F
	Outcome   *Outcome[R]
	LastError error
	CanSubmit bool
}

type Options struct {
	Timeout time.Duration
	// Scope разделяет незавершённые отправки экземпляров одной операции,
	// например по чату оператора.
	Scope   string
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type Workflow[F, R any] struct {
	op      Operation[F, R]
	creds   Credentials
	store   store.Store
	scope   string
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newKey  func() string

	mu      sync.Mutex
	phase   Phase
	form    F
	outcome *Outcome[R]
	lastErr error
	gen     uint64
	cancel  context.CancelFunc
}

func New[F, R any](op Operation[F, R], creds Credentials, st store.Store, opts Options) *Workflow[F, R] {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Workflow[F, R]{
		op:      op,
		creds:   creds,
		store:   st,
		scope:   opts.Scope,
		timeout: opts.Timeout,
		log:     log.With(zap.String("operation", op.Name())),
		metrics: opts.Metrics,
		now:     time.Now,
		newKey:  uuid.NewString,
	}
}

func (w *Workflow[F, R]) Name() string { return w.op.Name() }

// Open начинает работу со свежей формой. Незавершённая отправка отменяется.
func (w *Workflow[F, R]) Open(ctx context.Context) {
	form := w.op.NewForm(ctx)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.abandonLocked()
	w.phase = Idle
	w.form = form
	w.outcome = nil
	w.lastErr = nil
}

// Close возвращает в Idle из любого состояния и отбрасывает форму.
func (w *Workflow[F, R]) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.abandonLocked()
	var zero F
	w.phase = Idle
	w.form = zero
	w.outcome = nil
	w.lastErr = nil
}

// Cancel прерывает текущую отправку. Форма сохраняется, состояние Idle.
func (w *Workflow[F, R]) Cancel() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase != Submitting {
		return false
	}
	w.abandonLocked()
	w.phase = Idle
	w.lastErr = ErrCanceled
	w.log.Info("submission canceled by operator")
	return true
}

func (w *Workflow[F, R]) abandonLocked() {
	w.gen++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

// Edit меняет форму. Во время отправки форма заблокирована.
func (w *Workflow[F, R]) Edit(fn func(*F)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase == Submitting {
		return ErrSubmitInFlight
	}
	fn(&w.form)
	return nil
}

func (w *Workflow[F, R]) Form() F {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

func (w *Workflow[F, R]) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// CanSubmit истинно только при валидной форме, наличии токена и без отправки в полёте.
func (w *Workflow[F, R]) CanSubmit() bool {
	w.mu.Lock()
	phase, form := w.phase, w.form
	w.mu.Unlock()
	return phase != Submitting && w.creds.Token() != "" && w.op.Validate(form) == nil
}

func (w *Workflow[F, R]) Snapshot() Snapshot[F, R] {
	can := w.CanSubmit()
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot[F, R]{
		Phase:     w.phase,
		Form:      w.form,
		Outcome:   w.outcome,
		LastError: w.lastErr,
		CanSubmit: can,
	}
}

// Submit проверяет форму и отправляет запрос, блокируя до завершения.
// Завершённая отправка (успех или отказ) возвращает Outcome и nil.
// Ошибка возвращается, если запрос не был отправлен или результат неизвестен:
// ErrSubmitInFlight, ErrUnauthenticated, *ValidationError, *ledger.TimeoutError, ErrCanceled.
func (w *Workflow[F, R]) Submit(ctx context.Context) (Outcome[R], error) {
	// Token может инвалидировать сессию, а подписчики закрывают workflow.
	token := w.creds.Token()

	w.mu.Lock()
	if w.phase == Submitting {
		w.mu.Unlock()
		w.log.Debug("duplicate submit ignored")
		return Outcome[R]{}, ErrSubmitInFlight
	}
	w.phase = Validating
	form := w.form

	if token == "" {
		w.phase = Idle
		w.lastErr = ErrUnauthenticated
		w.mu.Unlock()
		return Outcome[R]{}, ErrUnauthenticated
	}
	if err := w.op.Validate(form); err != nil {
		w.phase = Idle
		w.lastErr = err
		w.mu.Unlock()
		return Outcome[R]{}, err
	}

	w.phase = Submitting
	w.outcome = nil
	w.lastErr = nil
	w.gen++
	gen := w.gen
	subCtx, cancel := context.WithTimeout(ctx, w.timeout)
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	key := w.idempotencyKey(ctx, form)
	started := w.now()
	w.log.Info("submitting", zap.String("idempotency_key", key))

	result, err := w.op.Submit(subCtx, ledger.Auth{Token: token, IdempotencyKey: key}, form)
	took := w.now().Sub(started)

	if err == nil {
		return w.settleSuccess(ctx, gen, form, result, key, took)
	}
	if errors.Is(subCtx.Err(), context.DeadlineExceeded) && !errors.Is(ctx.Err(), context.Canceled) {
		var te *ledger.TimeoutError
		if !errors.As(err, &te) {
			err = &ledger.TimeoutError{Op: w.op.Name(), After: took}
		}
	}
	return w.settleFailure(ctx, gen, token, err, key, took)
}

func (w *Workflow[F, R]) settleSuccess(ctx context.Context, gen uint64, form F, result R, key string, took time.Duration) (Outcome[R], error) {
	if hook, ok := w.op.(SuccessHook[F, R]); ok {
		if err := hook.OnSuccess(ctx, form, result); err != nil {
			w.log.Error("post-success hook failed", zap.Error(err))
		}
	}
	w.clearPending(ctx)
	fresh := w.op.NewForm(ctx)

	out := Outcome[R]{Success: true, Result: result, IdempotencyKey: key, SettledAt: w.now()}
	w.metrics.ObserveSubmission(w.op.Name(), "success", took)
	w.log.Info("submission succeeded", zap.Duration("took", took))

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return out, ErrCanceled
	}
	w.phase = Succeeded
	w.form = fresh
	w.outcome = &out
	w.cancel = nil
	return out, nil
}

func (w *Workflow[F, R]) settleFailure(ctx context.Context, gen uint64, token string, err error, key string, took time.Duration) (Outcome[R], error) {
	var (
		se *ledger.ServerError
		te *ledger.TimeoutError
	)
	switch {
	case errors.As(err, &se):
		// отказ сервера окончательный, ключ больше не нужен
		w.clearPending(ctx)
		if errors.Is(err, ledger.ErrUnauthorized) {
			w.creds.Invalidate(ctx, token, err)
		}
	case errors.As(err, &te):
		w.metrics.ObserveSubmission(w.op.Name(), "timeout", took)
		w.log.Warn("submission timed out, outcome unknown", zap.String("idempotency_key", key), zap.Duration("took", took))
		return w.settleUnknown(gen, err)
	case errors.Is(err, context.Canceled):
		w.metrics.ObserveSubmission(w.op.Name(), "canceled", took)
		return w.settleUnknown(gen, ErrCanceled)
	}

	out := Outcome[R]{
		Message:        w.op.FailureMessage(err),
		Err:            err,
		IdempotencyKey: key,
		SettledAt:      w.now(),
	}
	w.metrics.ObserveSubmission(w.op.Name(), "failure", took)
	w.log.Warn("submission failed", zap.String("message", out.Message), zap.Error(err))

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return out, ErrCanceled
	}
	w.phase = Failed
	w.outcome = &out
	w.cancel = nil
	return out, nil
}

// settleUnknown возвращает в Idle с сохранённой формой; ключ идемпотентности остаётся
// до следующей попытки.
func (w *Workflow[F, R]) settleUnknown(gen uint64, err error) (Outcome[R], error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return Outcome[R]{}, ErrCanceled
	}
	w.phase = Idle
	w.lastErr = err
	w.cancel = nil
	return Outcome[R]{}, err
}
