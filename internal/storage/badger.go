package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmoanes1/phonebook/internal/storage/kv"
)

// EngineBadger and EngineMemory are the accepted values of store.engine.
const (
	EngineBadger = "badger"
	EngineMemory = "memory"
)

// BadgerConfig tunes the Badger engine for a small single-user data set.
type BadgerConfig struct {
	// Dir is the database directory. Required.
	Dir string

	// GCInterval is the interval between value-log GC runs. 0 disables the loop.
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to RunValueLogGC (0.0-1.0).
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	ValueLogFileSize int64

	// SyncWrites fsyncs every write.
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration for dir.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:              dir,
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        8 << 20,
		ValueLogFileSize: 64 << 20,
		SyncWrites:       true,
	}
}

// BadgerEngine implements kv.Engine using Badger v3.
type BadgerEngine struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	lastGCTime       atomic.Int64 // Unix milliseconds
	gcBytesReclaimed atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

var _ kv.Engine = (*BadgerEngine)(nil)

// NewBadgerEngine opens (or creates) a Badger database in cfg.Dir.
func NewBadgerEngine(cfg BadgerConfig, logger *slog.Logger) (*BadgerEngine, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	e := &BadgerEngine{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if cfg.GCInterval > 0 {
		go e.gcLoop()
	} else {
		close(e.doneCh)
	}

	logger.Debug("badger engine started",
		"dir", cfg.Dir,
		"gc_interval", cfg.GCInterval)

	return e, nil
}

// Name implements kv.Engine.
func (e *BadgerEngine) Name() string { return EngineBadger }

// Get retrieves a value by key.
func (e *BadgerEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, kv.ErrClosed
	}
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return kv.ErrKeyNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores a key-value pair.
func (e *BadgerEngine) Set(ctx context.Context, key, value []byte) error {
	if e.closed.Load() {
		return kv.ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes a key.
func (e *BadgerEngine) Delete(ctx context.Context, key []byte) error {
	if e.closed.Load() {
		return kv.ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// DeletePrefix removes every key starting with prefix.
func (e *BadgerEngine) DeletePrefix(ctx context.Context, prefix []byte) error {
	if e.closed.Load() {
		return kv.ErrClosed
	}
	return e.db.DropPrefix(prefix)
}

// Scan iterates over keys with a given prefix in ascending order.
func (e *BadgerEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if e.closed.Load() {
		return kv.ErrClosed
	}
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.Key(), value) {
				break
			}
		}
		return nil
	})
}

// SaveSnapshot writes a full Badger backup to w.
func (e *BadgerEngine) SaveSnapshot(ctx context.Context, w io.Writer) error {
	if e.closed.Load() {
		return kv.ErrClosed
	}
	if _, err := e.db.Backup(w, 0); err != nil {
		return fmt.Errorf("badger: backup: %w", err)
	}
	return nil
}

// LoadSnapshot drops all data and loads a backup written by SaveSnapshot.
func (e *BadgerEngine) LoadSnapshot(ctx context.Context, r io.Reader) error {
	if e.closed.Load() {
		return kv.ErrClosed
	}
	if err := e.db.DropAll(); err != nil {
		return fmt.Errorf("badger: drop all: %w", err)
	}
	if err := e.db.Load(r, 256); err != nil {
		return fmt.Errorf("badger: load: %w", err)
	}
	e.logger.Info("snapshot restored", "dir", e.cfg.Dir)
	return nil
}

// GC runs value-log GC until Badger reports nothing left to rewrite.
func (e *BadgerEngine) GC(ctx context.Context) (uint64, error) {
	if e.closed.Load() {
		return 0, kv.ErrClosed
	}
	start := time.Now()
	_, before := e.db.Size()

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		err := e.db.RunValueLogGC(e.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			return 0, fmt.Errorf("badger: gc: %w", err)
		}
	}

	var reclaimed uint64
	if _, after := e.db.Size(); after < before {
		reclaimed = uint64(before - after)
	}
	e.lastGCTime.Store(time.Now().UnixMilli())
	e.gcBytesReclaimed.Add(reclaimed)

	e.logger.Debug("gc completed",
		"bytes_reclaimed", reclaimed,
		"elapsed", time.Since(start))

	return reclaimed, nil
}

// Stats returns storage statistics.
func (e *BadgerEngine) Stats(ctx context.Context) (*kv.Stats, error) {
	if e.closed.Load() {
		return nil, kv.ErrClosed
	}
	lsm, vlog := e.db.Size()
	return &kv.Stats{
		Engine:           EngineBadger,
		TotalSize:        uint64(lsm + vlog),
		LSMSize:          uint64(lsm),
		ValueLogSize:     uint64(vlog),
		LastGCTime:       e.lastGCTime.Load(),
		GCBytesReclaimed: e.gcBytesReclaimed.Load(),
	}, nil
}

// Close stops the GC loop and closes the database. Safe to call twice.
func (e *BadgerEngine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.stopCh)
		<-e.doneCh
		if cerr := e.db.Close(); cerr != nil {
			err = fmt.Errorf("badger: close db: %w", cerr)
		}
		e.logger.Debug("badger engine closed")
	})
	return err
}

// RegisterMetrics registers size and GC metrics with reg.
// Values are read from the engine at scrape time.
func (e *BadgerEngine) RegisterMetrics(reg prometheus.Registerer) error {
	size := func(pick func(lsm, vlog int64) int64) func() float64 {
		return func() float64 {
			if e.closed.Load() {
				return 0
			}
			lsm, vlog := e.db.Size()
			return float64(pick(lsm, vlog))
		}
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "phonebook",
			Subsystem: "badger",
			Name:      "lsm_size_bytes",
			Help:      "Badger LSM tree size in bytes.",
		}, size(func(lsm, _ int64) int64 { return lsm })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "phonebook",
			Subsystem: "badger",
			Name:      "value_log_size_bytes",
			Help:      "Badger value log size in bytes.",
		}, size(func(_, vlog int64) int64 { return vlog })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "phonebook",
			Subsystem: "badger",
			Name:      "last_gc_timestamp_seconds",
			Help:      "Unix timestamp of the last value-log GC run.",
		}, func() float64 { return float64(e.lastGCTime.Load()) / 1000.0 }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "phonebook",
			Subsystem: "badger",
			Name:      "gc_bytes_reclaimed_total",
			Help:      "Bytes reclaimed by value-log GC.",
		}, func() float64 { return float64(e.gcBytesReclaimed.Load()) }),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("badger: register metrics: %w", err)
		}
	}
	return nil
}

func (e *BadgerEngine) gcLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := e.GC(ctx); err != nil {
				e.logger.Warn("auto gc failed", "error", err)
			}
			cancel()
		case <-e.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
