// Package query загружает списки с сервера, кэширует их по ключу и
// объединяет одновременные запросы с одинаковым ключом.
package query

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/metrics"
)

// ErrUnauthenticated состояние запроса без учётных данных.
var ErrUnauthenticated = errors.New("unauthenticated")

// Credentials то, что запросу нужно от менеджера сессии.
type Credentials interface {
	Token() string
	// Invalidate сообщает, что сервер отверг token.
	Invalidate(ctx context.Context, token string, reason error)
}

// Params параметры, влияющие на ключ кэша.
type Params map[string]string

// Signature стабильный ключ вида и параметров; порядок параметров не важен.
func Signature(kind string, p Params) string {
	if len(p) == 0 {
		return kind
	}
	v := url.Values{}
	for k, val := range p {
		if val != "" {
			v.Set(k, val)
		}
	}
	if len(v) == 0 {
		return kind
	}
	// Encode сортирует ключи
	return kind + "?" + v.Encode()
}

// State состояние запроса для одного ключа.
type State[T any] struct {
	Items     []T
	Loading   bool
	Err       error
	Key       string
	FetchedAt time.Time
}

// Message текст ошибки для показа или пустая строка.
func (s State[T]) Message() string {
	return ErrorMessage(s.Err)
}

// ErrorMessage текст ошибки загрузки: сообщение сервера или транспортная ошибка.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var re *ledger.RequestError
	if errors.As(err, &re) {
		return re.Message()
	}
	var se *ledger.ServerError
	if errors.As(err, &se) && se.Text() != "" {
		return se.Text()
	}
	return err.Error()
}

type FetchFunc[T any] func(ctx context.Context, auth ledger.Auth, p Params) ([]T, error)

type Options struct {
	StaleTime time.Duration
	Retries   int
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.StaleTime <= 0 {
		o.StaleTime = time.Minute
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type entry[T any] struct {
	items     []T
	err       error
	fetchedAt time.Time
}

type Query[T any] struct {
	kind  string
	fetch FetchFunc[T]
	creds Credentials
	opts  Options
	now   func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	entries  map[string]entry[T]
	inflight map[string]int
	gen      uint64
}

// New создаёт запрос вида kind. Число повторов при сетевой ошибке задаёт Options.Retries.
func New[T any](kind string, creds Credentials, fetch FetchFunc[T], opts Options) *Query[T] {
	return &Query[T]{
		kind:     kind,
		fetch:    fetch,
		creds:    creds,
		opts:     opts.withDefaults(),
		now:      time.Now,
		entries:  make(map[string]entry[T]),
		inflight: make(map[string]int),
	}
}

func unauthenticated[T any](key string) State[T] {
	return State[T]{Items: []T{}, Loading: false, Err: ErrUnauthenticated, Key: key}
}

// Get возвращает свежий кэш или загружает данные. Без токена сеть не трогается.
func (q *Query[T]) Get(ctx context.Context, p Params) State[T] {
	key := Signature(q.kind, p)
	token := q.creds.Token()
	if token == "" {
		return unauthenticated[T](key)
	}

	q.mu.Lock()
	e, ok := q.entries[key]
	q.mu.Unlock()
	if ok && e.err == nil && q.now().Sub(e.fetchedAt) < q.opts.StaleTime {
		return state(key, e)
	}

	ch := q.group.DoChan(key, func() (any, error) {
		return q.load(context.WithoutCancel(ctx), key, token, p), nil
	})
	select {
	case res := <-ch:
		return state(key, res.Val.(entry[T]))
	case <-ctx.Done():
		return State[T]{Items: []T{}, Err: ctx.Err(), Key: key}
	}
}

func (q *Query[T]) load(ctx context.Context, key, token string, p Params) entry[T] {
	q.mu.Lock()
	q.inflight[key]++
	gen := q.gen
	q.mu.Unlock()

	started := q.now()
	items, err := q.fetchWithRetry(ctx, token, p)
	e := entry[T]{items: items, err: err, fetchedAt: q.now()}
	if err != nil {
		e.items = []T{}
	} else if e.items == nil {
		e.items = []T{}
	}

	q.mu.Lock()
	q.inflight[key]--
	if q.inflight[key] <= 0 {
		delete(q.inflight, key)
	}
	// результат запроса, начатого до Invalidate, в кэш не попадает
	if gen == q.gen {
		q.entries[key] = e
	}
	q.mu.Unlock()

	outcome := "ok"
	if err != nil {
		outcome = "error"
		q.opts.Logger.Warn("fetch failed", zap.String("kind", q.kind), zap.String("key", key), zap.Error(err))
	}
	q.opts.Metrics.ObserveFetch(q.kind, outcome, q.now().Sub(started))

	if errors.Is(err, ledger.ErrUnauthorized) {
		q.creds.Invalidate(ctx, token, err)
	}
	return e
}

func (q *Query[T]) fetchWithRetry(ctx context.Context, token string, p Params) ([]T, error) {
	var (
		items []T
		err   error
	)
	for attempt := 0; attempt <= q.opts.Retries; attempt++ {
		items, err = q.fetch(ctx, ledger.Auth{Token: token}, p)
		if err == nil || !retryable(err) {
			return items, err
		}
		q.opts.Logger.Debug("retrying fetch", zap.String("kind", q.kind), zap.Int("attempt", attempt+1))
	}
	return items, err
}

func retryable(err error) bool {
	var re *ledger.RequestError
	var te *ledger.TimeoutError
	return errors.As(err, &re) || errors.As(err, &te)
}

// Peek возвращает последнее известное состояние без загрузки.
func (q *Query[T]) Peek(p Params) State[T] {
	key := Signature(q.kind, p)
	if q.creds.Token() == "" {
		return unauthenticated[T](key)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[key]
	s := State[T]{Items: []T{}, Key: key}
	if ok {
		s = state(key, e)
	}
	s.Loading = q.inflight[key] > 0
	return s
}

// Invalidate сбрасывает кэш всех ключей. Новые вызовы Get не присоединяются
// к загрузкам, начатым до сброса.
func (q *Query[T]) Invalidate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for key := range q.inflight {
		q.group.Forget(key)
	}
	q.entries = make(map[string]entry[T])
	q.gen++
}

func state[T any](key string, e entry[T]) State[T] {
	return State[T]{Items: e.items, Err: e.err, Key: key, FetchedAt: e.fetchedAt}
}
