package store

import (
	"fmt"

	"github.com/ivanoskov/custody_admin/internal/config"
)

// Open выбирает реализацию хранилища по конфигурации.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.StoreSupabase:
		return NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTable)
	case config.StoreBadger, "":
		return NewBadgerStore(cfg.StorePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
