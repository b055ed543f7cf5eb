package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/subculture-collective/spywatcher/internal/cache"
	"github.com/subculture-collective/spywatcher/internal/config"
	"github.com/subculture-collective/spywatcher/internal/logger"
	"github.com/subculture-collective/spywatcher/internal/metrics"
	"github.com/subculture-collective/spywatcher/internal/server"
	"github.com/subculture-collective/spywatcher/internal/store"
	"github.com/subculture-collective/spywatcher/pkg/extension"
	"github.com/subculture-collective/spywatcher/pkg/ws"
)

// Daemon is the Spywatcher service: it owns the host singletons (event
// store, cache, websocket hub, metrics), boots the extension runtime,
// and runs the HTTP API until a shutdown signal arrives.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	store   *store.Store
	cache   cache.Cache
	hub     *ws.Hub
	metrics *metrics.Metrics

	manager *extension.Manager
	watcher *extension.Watcher
	server  *server.Server
	cron    *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// New creates a new daemon instance and wires its subsystems in
// dependency order.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config: cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := d.initialize(); err != nil {
		cancel()
		d.closeResources()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) initialize() error {
	zl := d.logger.Zerolog()

	if d.config.Metrics.Enabled {
		d.metrics = metrics.New()
	}

	st, err := store.Open(d.config.Database.Path, d.logger.Component("store"))
	if err != nil {
		return fmt.Errorf("opening event store: %w", err)
	}
	d.store = st

	d.cache, err = d.openCache()
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}

	d.hub = ws.NewHub(d.logger.Component("ws"))
	d.hub.OnConnect(func(clientID string) {
		if d.metrics != nil {
			d.metrics.WebsocketClientsActive.Inc()
		}
		d.manager.ExecuteHook(d.ctx, extension.HookWebsocketConnect,
			map[string]any{"client_id": clientID})
	})
	d.hub.OnDisconnect(func(clientID string) {
		if d.metrics != nil {
			d.metrics.WebsocketClientsActive.Dec()
		}
		d.manager.ExecuteHook(d.ctx, extension.HookWebsocketDisconnect,
			map[string]any{"client_id": clientID})
	})

	d.manager = extension.Default()
	result, err := d.manager.Initialize(d.ctx, extension.Config{
		ExtensionsDir:       d.config.Extensions.Dir,
		DataDir:             d.config.Extensions.DataDir,
		AutoStart:           d.config.Extensions.AutoStart,
		PreSortDependencies: d.config.Extensions.PreSortDependencies,
		CallTimeout:         time.Duration(d.config.Extensions.CallTimeoutSeconds) * time.Second,
		SandboxEnabled:      d.config.Extensions.SandboxEnabled,
		MemoryLimitMB:       d.config.Extensions.MemoryLimitMB,
	}, extension.Hosts{
		DB:      d.store.DB(),
		Cache:   d.cache,
		WS:      d.hub,
		Metrics: d.metrics,
	}, zl, d.metrics)
	if err != nil {
		return fmt.Errorf("initializing extension runtime: %w", err)
	}
	for id, loadErr := range result.Errors {
		zl.Warn().Err(loadErr).Str("plugin", id).Msg("Extension failed during startup sweep")
	}

	if d.config.Extensions.Watch {
		watcher, err := extension.NewWatcher(d.manager.Loader(), zl)
		if err != nil {
			zl.Warn().Err(err).Msg("Extension hot loading unavailable")
		} else {
			d.watcher = watcher
		}
	}

	srv, err := server.NewServer(server.Config{
		Host:           d.config.Server.Host,
		Port:           d.config.Server.Port,
		AllowedOrigins: d.config.Server.AllowedOrigins,
		Manager:        d.manager,
		Hub:            d.hub,
		Store:          d.store,
		Metrics:        d.metrics,
		Logger:         zl,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}
	d.server = srv

	d.cron = cron.New()
	if d.config.Monitor.HealthCron != "" {
		if _, err := d.cron.AddFunc(d.config.Monitor.HealthCron, d.healthSweep); err != nil {
			return fmt.Errorf("scheduling health sweep: %w", err)
		}
	}

	return nil
}

func (d *Daemon) openCache() (cache.Cache, error) {
	if d.config.Cache.Backend == "redis" {
		return cache.NewRedis(d.ctx, cache.Config{
			Addr:     d.config.Cache.Addr,
			Password: d.config.Cache.Password,
			DB:       d.config.Cache.DB,
		}, d.logger.Component("cache"))
	}
	return cache.NewMemory(), nil
}

// healthSweep probes every extension and pushes the results to websocket
// subscribers.
func (d *Daemon) healthSweep() {
	loader := d.manager.Loader()
	if loader == nil {
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, 30*time.Second)
	defer cancel()

	health := loader.HealthAll(ctx)
	for id, h := range health {
		if !h.Healthy {
			d.logger.Warn().
				Str("plugin", id).
				Str("state", h.State).
				Str("error", h.Error).
				Msg("Extension unhealthy")
		}
	}
	d.hub.Broadcast("extension-health", health)
}

// Run starts the daemon and blocks until SIGINT/SIGTERM or a fatal
// server error.
func (d *Daemon) Run() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	d.logger.Info().Msg("Spywatcher daemon starting")

	d.cron.Start()

	if d.watcher != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.watcher.Start(d.ctx)
		}()
	}

	errCh := make(chan error, 1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		errCh <- d.server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		d.logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			d.logger.Error().Err(err).Msg("HTTP server failed")
			d.shutdown()
			return err
		}
	}

	d.shutdown()
	return nil
}

func (d *Daemon) shutdown() {
	d.logger.Info().Msg("Spywatcher daemon shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cronCtx := d.cron.Stop()
	<-cronCtx.Done()

	if err := d.server.Shutdown(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("HTTP server shutdown error")
	}

	d.manager.Shutdown(ctx)
	d.hub.CloseAll()
	d.cancel()
	d.wg.Wait()
	d.closeResources()

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	d.logger.Info().Msg("Spywatcher daemon stopped")
}

func (d *Daemon) closeResources() {
	if d.watcher != nil {
		_ = d.watcher.Close()
	}
	if d.cache != nil {
		_ = d.cache.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
}

// Uptime returns how long the daemon has been running.
func (d *Daemon) Uptime() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		return 0
	}
	return time.Since(d.startTime)
}
