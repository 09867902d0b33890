// Package store хранит состояние оператора между перезапусками:
// токен сессии, профиль, последний номер счёта и незавершённые отправки.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Ключи хранилища.
const (
	KeyAuthToken         = "auth_token"
	KeyAuthUser          = "auth_user"
	KeyLastAccountNumber = "lastAccountNumber"
	pendingPrefix        = "pending_submission:"
)

var ErrNotFound = errors.New("store: key not found")

// Store простое key-value хранилище. Запись по принципу "последний побеждает".
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// PendingKey ключ незавершённой отправки операции.
func PendingKey(operation string) string {
	return pendingPrefix + operation
}

func GetString(ctx context.Context, s Store, key string) (string, error) {
	b, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func SetString(ctx context.Context, s Store, key, value string) error {
	return s.Set(ctx, key, []byte(value))
}

func GetJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func SetJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, b)
}
