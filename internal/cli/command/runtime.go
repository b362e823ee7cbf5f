package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/jmoanes1/phonebook/internal/cli/config"
	"github.com/jmoanes1/phonebook/internal/cli/connection"
	"github.com/jmoanes1/phonebook/internal/core/domain"
	"github.com/jmoanes1/phonebook/internal/core/service"
	"github.com/jmoanes1/phonebook/internal/infra/shutdown"
	"github.com/jmoanes1/phonebook/internal/infra/tlsroots"
	"github.com/jmoanes1/phonebook/internal/storage"
	"github.com/jmoanes1/phonebook/internal/telemetry/logger"
	"github.com/jmoanes1/phonebook/internal/telemetry/metric"
)

// Runtime holds the long-lived objects behind the commands.
type Runtime struct {
	Config     *config.CLIConfig
	ConfigPath string
	Logger     logger.Logger
	Metrics    *metric.Registry
	Store      *storage.Local
	Client     *connection.HTTPClient
	Conn       *connection.Manager

	mu        sync.Mutex
	phonebook *service.Phonebook
	started   bool
}

// NewRuntime opens the local store and wires the remote client, metrics
// and service layer from cfg. Logs go to logOut.
func NewRuntime(ctx context.Context, cfg *config.CLIConfig, path string, logOut io.Writer) (*Runtime, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: logOut,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)

	badgerCfg := storage.DefaultBadgerConfig(cfg.Store.Dir)
	badgerCfg.GCInterval = cfg.Store.GCInterval.Std()
	store, err := storage.Open(ctx, storage.Config{
		Engine:     cfg.Store.Engine,
		Badger:     badgerCfg,
		Passphrase: cfg.Store.Passphrase,
	}, logger.Slog(log.With("component", "store")))
	if err != nil {
		return nil, err
	}

	opts := connection.Options{
		Timeout:   cfg.Server.Timeout.Std(),
		RateLimit: cfg.Server.RateLimit,
		Burst:     cfg.Server.Burst,
	}
	if cfg.Server.CAFile != "" {
		pool, err := tlsroots.Load(cfg.Server.CAFile)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		opts.Transport = pool.Transport()
	}
	client := connection.NewHTTPClient(cfg.Server.URL, opts)

	rt := &Runtime{
		Config:     cfg,
		ConfigPath: path,
		Logger:     log,
		Metrics:    metric.NewRegistry(),
		Store:      store,
		Client:     client,
		Conn:       connection.NewManager(cfg.Server.URL),
	}
	rt.Conn.Watch(client)
	client.Observe(func(o connection.Outcome) {
		rt.Metrics.ObserveRemote(o.Method, o.Label(), o.Duration)
		log.Debug("remote call",
			"method", o.Method,
			"path", o.Path,
			"request_id", o.RequestID,
			"status", o.Status,
			"outcome", o.Label(),
			"duration", o.Duration)
	})
	rt.registerMetrics()

	if err := rt.reload(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	log.Debug("runtime ready",
		"server", client.BaseURL(),
		"engine", store.EngineName(),
		"sealed", store.Sealed(),
		"fallback", cfg.Fallback.Enabled)
	return rt, nil
}

func (r *Runtime) registerMetrics() {
	if err := r.Store.RegisterMetrics(r.Metrics.Registerer()); err != nil {
		r.Logger.Warn("register store metrics", "error", err)
	}
	if err := r.Metrics.Registerer().Register(metric.NewStoreCollector(r.Store)); err != nil {
		r.Logger.Warn("register store collector", "error", err)
	}
	if err := r.Metrics.RegisterRuntime(); err != nil {
		r.Logger.Warn("register runtime metrics", "error", err)
	}
}

// reload builds a fresh service layer over the store, dropping any state
// held in memory. Used at startup and after a backup restore.
func (r *Runtime) reload(ctx context.Context) error {
	pb, err := service.New(ctx, r.Client, r.Store, service.Options{
		DisableFallback: !r.Config.Fallback.Enabled,
		VerifyPassword:  r.Config.Fallback.VerifyPassword,
		Recorder:        r.Metrics,
		Logger:          r.Logger,
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.phonebook = pb
	r.started = false
	r.mu.Unlock()
	return nil
}

// Phonebook returns the service layer.
func (r *Runtime) Phonebook() *service.Phonebook {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phonebook
}

// start resolves the persisted session and loads contacts the first time
// it is called. It reports whether this call did the work. Once the refresh
// has resolved, later calls return at once even if this one failed.
func (r *Runtime) start(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return false, nil
	}
	err := r.phonebook.Start(ctx)
	if !r.phonebook.Session().IsRefreshing {
		r.started = true
	}
	return err == nil, err
}

// markStarted records that the session is already resolved, after a
// login, registration or logout.
func (r *Runtime) markStarted() {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
}

// requireLogin starts the runtime and fails unless a user is logged in.
func (r *Runtime) requireLogin(ctx context.Context) (*service.Phonebook, error) {
	if _, err := r.start(ctx); err != nil {
		return nil, err
	}
	pb := r.Phonebook()
	s := pb.Session()
	if !s.IsLoggedIn {
		err := domain.ErrNotAuthenticated
		if s.LastError != nil {
			return nil, err.WithCause(s.LastError).WithDetails(s.LastError.Message)
		}
		return nil, err
	}
	return pb, nil
}

// warnOffline tells the user results came from the local store.
func (r *Runtime) warnOffline(w io.Writer) {
	if !r.Conn.Offline() {
		return
	}
	if r.Config.Fallback.Enabled {
		fmt.Fprintf(w, "warning: %s is unreachable, using local data\n", r.Client.BaseURL())
	} else {
		fmt.Fprintf(w, "warning: %s is unreachable\n", r.Client.BaseURL())
	}
}

// Close closes the local store.
func (r *Runtime) Close(context.Context) error {
	return r.Store.Close()
}

// runtimeFrom returns the Runtime of the app, building it on first use.
func runtimeFrom(c *cli.Context) (*Runtime, error) {
	if rt, ok := c.App.Metadata[metaRuntime].(*Runtime); ok {
		return rt, nil
	}

	h, ok := c.App.Metadata[metaShutdown].(*shutdown.Handler)
	if !ok || h == nil {
		return nil, errors.New("command: no shutdown handler")
	}

	cfg, path, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	rt, err := NewRuntime(c.Context, cfg, path, c.App.ErrWriter)
	if err != nil {
		return nil, err
	}
	h.OnShutdown(rt.Close)
	c.App.Metadata[metaRuntime] = rt
	return rt, nil
}
