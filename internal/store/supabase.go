package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
)

// stateRow строка таблицы состояния оператора.
type stateRow struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SupabaseStore хранит состояние в таблице Supabase. Используется там,
// где локальный диск не переживает перезапуск (serverless, webhook).
type SupabaseStore struct {
	client *supabase.Client
	table  string
}

func NewSupabaseStore(url, key, table string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	if table == "" {
		table = "operator_state"
	}
	return &SupabaseStore{client: client, table: table}, nil
}

func (s *SupabaseStore) Get(_ context.Context, key string) ([]byte, error) {
	data, _, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("key", key).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var rows []stateRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return []byte(rows[0].Value), nil
}

func (s *SupabaseStore) Set(_ context.Context, key string, value []byte) error {
	row := stateRow{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	if _, _, err := s.client.From(s.table).Insert(row, true, "key", "", "").Execute(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SupabaseStore) Delete(_ context.Context, key string) error {
	if _, _, err := s.client.From(s.table).Delete("", "").Eq("key", key).Execute(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *SupabaseStore) Close() error { return nil }
