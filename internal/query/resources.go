package query

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/model"
)

// Source серверные операции чтения.
type Source interface {
	ListUsers(ctx context.Context, auth ledger.Auth) ([]model.User, error)
	ListWallets(ctx context.Context, auth ledger.Auth) ([]model.Wallet, error)
	ListTransactions(ctx context.Context, auth ledger.Auth, owner string) ([]model.Transaction, error)
	GetUser(ctx context.Context, auth ledger.Auth, userID string) (model.User, error)
}

// WalletsPerPage размер страницы списка кошельков.
const WalletsPerPage = 100

// Resources типизированный доступ к спискам с клиентской фильтрацией.
// Сервер всегда отдаёт полную страницу, поэтому все фильтры одного вида
// используют одну загрузку.
type Resources struct {
	src          Source
	creds        Credentials
	users        *Query[model.User]
	wallets      *Query[model.Wallet]
	transactions *Query[model.Transaction]
}

func NewResources(src Source, creds Credentials, opts Options) *Resources {
	if opts.Retries == 0 {
		opts.Retries = 1
	}
	return &Resources{
		src:   src,
		creds: creds,
		users: New("users", creds, func(ctx context.Context, auth ledger.Auth, _ Params) ([]model.User, error) {
			return src.ListUsers(ctx, auth)
		}, opts),
		wallets: New("wallets", creds, func(ctx context.Context, auth ledger.Auth, _ Params) ([]model.Wallet, error) {
			return src.ListWallets(ctx, auth)
		}, opts),
		transactions: New("transactions", creds, func(ctx context.Context, auth ledger.Auth, p Params) ([]model.Transaction, error) {
			return src.ListTransactions(ctx, auth, p["owner"])
		}, opts),
	}
}

// Invalidate сбрасывает кэш всех видов. Подходит как подписчик на потерю сессии.
func (r *Resources) Invalidate() {
	r.users.Invalidate()
	r.wallets.Invalidate()
	r.transactions.Invalidate()
}

func filtered[T any](src State[T], key string, match func(T) bool) State[T] {
	out := State[T]{Items: []T{}, Loading: src.Loading, Err: src.Err, Key: key, FetchedAt: src.FetchedAt}
	for _, it := range src.Items {
		if match(it) {
			out.Items = append(out.Items, it)
		}
	}
	return out
}

func (r *Resources) Users(ctx context.Context, f model.UserFilter) State[model.User] {
	return filtered(r.users.Get(ctx, nil), Signature("users", f.Params()), f.Match)
}

// SearchUsers ищет получателя по подстроке имени или почты, ближайшие совпадения первыми.
func (r *Resources) SearchUsers(ctx context.Context, term string, limit int) State[model.User] {
	term = strings.ToLower(strings.TrimSpace(term))
	key := Signature("users", Params{"search": term})
	if term == "" {
		s := r.users.Peek(nil)
		return State[model.User]{Items: []model.User{}, Err: authErr(s.Err), Key: key}
	}
	s := filtered(r.users.Get(ctx, nil), key, model.UserFilter{Search: term}.Match)

	dist := func(u model.User) int {
		d := levenshtein.ComputeDistance(term, strings.ToLower(u.FullName()))
		if e := levenshtein.ComputeDistance(term, strings.ToLower(u.Email)); e < d {
			d = e
		}
		return d
	}
	sort.SliceStable(s.Items, func(i, j int) bool { return dist(s.Items[i]) < dist(s.Items[j]) })
	if limit > 0 && len(s.Items) > limit {
		s.Items = s.Items[:limit]
	}
	return s
}

func authErr(err error) error {
	if errors.Is(err, ErrUnauthenticated) {
		return err
	}
	return nil
}

func (r *Resources) Wallets(ctx context.Context, f model.WalletFilter) State[model.Wallet] {
	return filtered(r.wallets.Get(ctx, nil), Signature("wallets", f.Params()), f.Match)
}

// AllWallets нужен для сводки, которая считается по всем кошелькам без фильтра.
func (r *Resources) AllWallets(ctx context.Context) State[model.Wallet] {
	return r.wallets.Get(ctx, nil)
}

// Transactions операции владельца, новые первыми.
func (r *Resources) Transactions(ctx context.Context, owner string) State[model.Transaction] {
	s := r.transactions.Get(ctx, Params{"owner": owner})
	s.Items = SortByNewest(s.Items)
	return s
}

// UserDetail карточка пользователя.
type UserDetail struct {
	User         model.User
	Balance      decimal.Decimal
	Transactions []model.Transaction
	CreditCount  int
	DebitCount   int
}

func (r *Resources) UserDetail(ctx context.Context, userID string) (UserDetail, error) {
	token := r.creds.Token()
	if token == "" {
		return UserDetail{}, ErrUnauthenticated
	}
	u, err := r.src.GetUser(ctx, ledger.Auth{Token: token}, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrUnauthorized) {
			r.creds.Invalidate(ctx, token, err)
		}
		return UserDetail{}, err
	}

	txs := r.Transactions(ctx, userID)
	if txs.Err != nil {
		return UserDetail{}, txs.Err
	}
	d := UserDetail{User: u, Transactions: txs.Items, Balance: CurrentBalance(txs.Items)}
	for _, t := range txs.Items {
		switch {
		case t.IsCredit():
			d.CreditCount++
		case t.IsDebit():
			d.DebitCount++
		}
	}
	return d, nil
}
