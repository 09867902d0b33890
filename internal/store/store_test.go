package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanoskov/custody_admin/internal/model"
)

func newBadger(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := NewInMemoryBadgerStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, SetString(ctx, s, KeyLastAccountNumber, "0123456789"))
	got, err := GetString(ctx, s, KeyLastAccountNumber)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", got)

	require.NoError(t, SetString(ctx, s, KeyLastAccountNumber, "9876543210"))
	got, err = GetString(ctx, s, KeyLastAccountNumber)
	require.NoError(t, err)
	assert.Equal(t, "9876543210", got)

	op := model.Operator{UserID: "op-1", Email: "ops@example.com"}
	require.NoError(t, SetJSON(ctx, s, KeyAuthUser, op))
	var restored model.Operator
	require.NoError(t, GetJSON(ctx, s, KeyAuthUser, &restored))
	assert.Equal(t, op, restored)

	require.NoError(t, s.Delete(ctx, KeyAuthUser))
	require.NoError(t, s.Delete(ctx, KeyAuthUser))
	_, err = s.Get(ctx, KeyAuthUser)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore(t *testing.T) {
	exerciseStore(t, newBadger(t))
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, SetString(ctx, s, KeyAuthToken, "tok"))
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := GetString(ctx, s, KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)
}

func TestPendingKey(t *testing.T) {
	assert.Equal(t, "pending_submission:credit_wallet", PendingKey("credit_wallet"))
}

// Требует реальный проект Supabase с таблицей operator_state(key text primary key, value text, updated_at timestamptz).
func TestSupabaseStoreIntegration(t *testing.T) {
	url, key := os.Getenv("SUPABASE_TEST_URL"), os.Getenv("SUPABASE_TEST_KEY")
	if url == "" || key == "" {
		t.Skip("SUPABASE_TEST_URL and SUPABASE_TEST_KEY not set")
	}
	s, err := NewSupabaseStore(url, key, "")
	require.NoError(t, err)
	exerciseStore(t, s)
}
