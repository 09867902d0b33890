// Package ledger клиент удалённого API кастодиального сервиса.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// PageSize максимальный размер страницы, который поддерживает сервер.
	PageSize = 1000

	maxResponseBytes  = 8 << 20
	idempotencyHeader = "Idempotency-Key"
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// Auth данные вызова: токен оператора и ключ идемпотентности (для изменяющих запросов).
type Auth struct {
	Token          string
	IdempotencyKey string
}

func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ledger base url %q", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		log:        log,
	}, nil
}

// envelope общий конверт ответа API.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, op, method, path string, auth Auth, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to marshal request body: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth.Token != "" {
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	}
	if auth.IdempotencyKey != "" {
		req.Header.Set(idempotencyHeader, auth.IdempotencyKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, op, err, time.Since(started))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.transportError(ctx, op, err, time.Since(started))
	}

	c.log.Debug("ledger call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, serverError(op, resp.StatusCode, raw)
	}
	if res := gjson.GetBytes(raw, "success"); res.Exists() && !res.Bool() {
		return nil, serverError(op, resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *Client) transportError(ctx context.Context, op string, err error, took time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, After: took}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Op: op, After: took}
	}
	return &RequestError{Op: op, Err: err}
}

func serverError(op string, status int, raw []byte) *ServerError {
	e := &ServerError{Op: op, StatusCode: status}
	if !gjson.ValidBytes(raw) {
		return e
	}
	e.Message = gjson.GetBytes(raw, "message").String()
	errField := gjson.GetBytes(raw, "error")
	if errField.IsObject() {
		e.ErrorText = errField.Get("message").String()
	} else {
		e.ErrorText = errField.String()
	}
	return e
}

func decodeData(op string, raw []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("malformed response: %w", err)}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("malformed response data: %w", err)}
	}
	return nil
}

func listPath(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("page_size", fmt.Sprint(PageSize))
	return path + "?" + query.Encode()
}
