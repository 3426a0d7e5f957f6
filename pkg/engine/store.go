package engine

import (
	"github.com/pkg/errors"

	"tempo-swap/config"
	"tempo-swap/pkg/activity"
)

// OpenStore builds the ledger store selected by cfg.Backend. The returned
// close func ends the session for stores that outlive the process.
func OpenStore(cfg config.LedgerConfig) (activity.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case "", "memory":
		return activity.NewMemoryStore(), noop, nil
	case "file":
		s, err := activity.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open file ledger")
		}
		return s, noop, nil
	case "redis":
		s := activity.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
		return s, s.Close, nil
	case "wal":
		s, err := activity.NewWALStore(cfg.Dir)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open wal ledger")
		}
		return s, s.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}
