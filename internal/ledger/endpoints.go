package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/ivanoskov/custody_admin/internal/model"
)

type signInRequest struct {
	Field    string `json:"field"`
	Password string `json:"password"`
}

type signInResponse struct {
	Token string         `json:"token"`
	User  model.Operator `json:"user"`
}

// SignIn обменивает логин и пароль на токен.
func (c *Client) SignIn(ctx context.Context, identifier, password string) (string, model.Operator, error) {
	const op = "sign in"
	raw, err := c.do(ctx, op, http.MethodPost, "/auth/signin", Auth{}, signInRequest{Field: identifier, Password: password})
	if err != nil {
		return "", model.Operator{}, err
	}
	var resp signInResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", model.Operator{}, &RequestError{Op: op, Err: err}
	}
	if resp.Token == "" {
		return "", model.Operator{}, &RequestError{Op: op, Err: errors.New("response has no token")}
	}
	return resp.Token, resp.User, nil
}

func (c *Client) ListUsers(ctx context.Context, auth Auth) ([]model.User, error) {
	const op = "list users"
	raw, err := c.do(ctx, op, http.MethodGet, listPath("/user-admin/list", nil), auth, nil)
	if err != nil {
		return nil, err
	}
	var users []model.User
	return users, decodeData(op, raw, &users)
}

func (c *Client) ListWallets(ctx context.Context, auth Auth) ([]model.Wallet, error) {
	const op = "list wallets"
	raw, err := c.do(ctx, op, http.MethodGet, listPath("/admin/wallet/users", nil), auth, nil)
	if err != nil {
		return nil, err
	}
	var wallets []model.Wallet
	return wallets, decodeData(op, raw, &wallets)
}

// ListTransactions пустой owner означает все транзакции.
func (c *Client) ListTransactions(ctx context.Context, auth Auth, owner string) ([]model.Transaction, error) {
	const op = "list transactions"
	q := url.Values{}
	if owner != "" {
		q.Set("owner", owner)
	}
	raw, err := c.do(ctx, op, http.MethodGet, listPath("/transactions/list", q), auth, nil)
	if err != nil {
		return nil, err
	}
	var txs []model.Transaction
	return txs, decodeData(op, raw, &txs)
}

func (c *Client) GetUser(ctx context.Context, auth Auth, userID string) (model.User, error) {
	const op = "get user"
	raw, err := c.do(ctx, op, http.MethodGet, "/admin/user/"+url.PathEscape(userID), auth, nil)
	if err != nil {
		return model.User{}, err
	}
	var u model.User
	return u, decodeData(op, raw, &u)
}

// Result ответ изменяющего запроса.
type Result struct {
	Message string
	Raw     json.RawMessage
}

func mutationResult(raw []byte) Result {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)
	return Result{Message: body.Message, Raw: raw}
}

// CreditWalletRequest сумма передаётся строкой, как её ввёл оператор.
type CreditWalletRequest struct {
	Password      string `json:"password"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Amount        string `json:"amount"`
}

func (c *Client) CreditWallet(ctx context.Context, auth Auth, req CreditWalletRequest) (Result, error) {
	raw, err := c.do(ctx, "credit wallet", http.MethodPost, "/9psb/admin/credit-wallet", auth, req)
	if err != nil {
		return Result{}, err
	}
	return mutationResult(raw), nil
}

// CreditUserRequest перевод на внутренний кошелёк; сумма в минимальных единицах.
type CreditUserRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

func (c *Client) CreditUser(ctx context.Context, auth Auth, userID string, req CreditUserRequest) (Result, error) {
	path := "/admin/wallet/user/" + url.PathEscape(userID) + "/credit"
	raw, err := c.do(ctx, "transfer funds", http.MethodPost, path, auth, req)
	if err != nil {
		return Result{}, err
	}
	return mutationResult(raw), nil
}

type evacuateRequest struct {
	From model.Rail `json:"from"`
}

func (c *Client) Evacuate(ctx context.Context, auth Auth, rail model.Rail) (model.EvacuationReport, error) {
	const op = "evacuate funds"
	raw, err := c.do(ctx, op, http.MethodPost, "/funds/evacuate", auth, evacuateRequest{From: rail})
	if err != nil {
		return model.EvacuationReport{}, err
	}
	var report model.EvacuationReport
	if err := decodeData(op, raw, &report); err != nil {
		return model.EvacuationReport{}, err
	}
	report.Rail = rail
	return report, nil
}

// PushRequest пустой Email означает рассылку всем пользователям.
type PushRequest struct {
	Email string `json:"email,omitempty"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (c *Client) SendPush(ctx context.Context, auth Auth, req PushRequest) (Result, error) {
	path := "/notifications/admin/send-push"
	if req.Email != "" {
		path = "/notifications/admin/user/send-push"
	}
	raw, err := c.do(ctx, "send push", http.MethodPost, path, auth, req)
	if err != nil {
		return Result{}, err
	}
	return mutationResult(raw), nil
}
