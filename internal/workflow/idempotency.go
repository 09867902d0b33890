package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivanoskov/custody_admin/internal/store"
)

// pendingSubmission ключ отправки, результат которой неизвестен.
type pendingSubmission struct {
	Fingerprint string    `json:"fingerprint"`
	Key         string    `json:"key"`
	CreatedAt   time.Time `json:"created_at"`
}

// idempotencyKey повторно использует ключ, если содержимое запроса не менялось.
func (w *Workflow[F, R]) idempotencyKey(ctx context.Context, form F) string {
	fp := w.op.Fingerprint(form)
	storeKey := w.pendingStoreKey()

	var p pendingSubmission
	err := store.GetJSON(ctx, w.store, storeKey, &p)
	switch {
	case err == nil && p.Fingerprint == fp && p.Key != "":
		w.log.Info("reusing idempotency key of unsettled submission", zap.String("idempotency_key", p.Key))
		return p.Key
	case err != nil && !errors.Is(err, store.ErrNotFound):
		w.log.Warn("pending submission unreadable", zap.Error(err))
	}

	p = pendingSubmission{Fingerprint: fp, Key: w.newKey(), CreatedAt: w.now().UTC()}
	if err := store.SetJSON(ctx, w.store, storeKey, p); err != nil {
		w.log.Warn("failed to persist idempotency key", zap.Error(err))
	}
	return p.Key
}

func (w *Workflow[F, R]) clearPending(ctx context.Context) {
	if err := w.store.Delete(ctx, w.pendingStoreKey()); err != nil {
		w.log.Warn("failed to clear pending submission", zap.Error(err))
	}
}

// PendingKey ключ незавершённой отправки или пустая строка.
func (w *Workflow[F, R]) PendingKey(ctx context.Context) string {
	var p pendingSubmission
	if err := store.GetJSON(ctx, w.store, w.pendingStoreKey(), &p); err != nil {
		return ""
	}
	return p.Key
}

func (w *Workflow[F, R]) pendingStoreKey() string {
	key := store.PendingKey(w.op.Name())
	if w.scope != "" {
		key += ":" + w.scope
	}
	return key
}

// fingerprint хэш значимых полей запроса.
func fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
