package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoanes1/phonebook/internal/storage/kv"
	"github.com/jmoanes1/phonebook/internal/storage/memory"
)

// Config selects and configures the Local Store.
type Config struct {
	// Engine is EngineBadger (default) or EngineMemory.
	Engine string

	// Badger configures the durable engine. Badger.Dir is required for it.
	Badger BadgerConfig

	// Passphrase seals values at rest when non-empty.
	Passphrase string
}

// Open opens the Local Store.
//
// The durable Badger engine is tried first. If it cannot be opened (missing
// directory permissions, another process holding the lock) the in-memory
// engine is swapped in once and a warning is logged. Nothing is written to
// both engines and nothing is migrated between them.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	engine, err := openEngine(cfg, logger)
	if err != nil {
		return nil, storageErr("open engine", err)
	}

	local, err := NewLocal(ctx, engine, cfg.Passphrase, logger)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return local, nil
}

func openEngine(cfg Config, logger *slog.Logger) (kv.Engine, error) {
	switch cfg.Engine {
	case EngineMemory:
		return memory.New(), nil
	case "", EngineBadger:
		e, err := NewBadgerEngine(cfg.Badger, logger.With("component", "badger"))
		if err != nil {
			logger.Warn("durable store unavailable, using in-memory store",
				"dir", cfg.Badger.Dir,
				"error", err)
			return memory.New(), nil
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown store engine %q", cfg.Engine)
	}
}
