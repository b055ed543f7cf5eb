package extension

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/subculture-collective/spywatcher/internal/cache"
	"github.com/subculture-collective/spywatcher/internal/logger"
	"github.com/subculture-collective/spywatcher/internal/metrics"
	"github.com/subculture-collective/spywatcher/pkg/discord"
	"github.com/subculture-collective/spywatcher/pkg/ws"
)

// Hosts bundles the process-wide singleton handles the loader may grant
// to extensions. Any field may be nil; a nil host simply means the
// corresponding permission grants nothing.
type Hosts struct {
	Bot     discord.Client
	DB      *sql.DB
	Cache   cache.Cache
	WS      *ws.Hub
	Metrics *metrics.Metrics
}

// Context is the permission-scoped capability bundle handed to one
// extension instance. Fields gated by an undeclared permission are nil,
// so "not granted" is distinguishable from "granted but empty". The
// loader owns the Context; the extension borrows it until unload and
// must not retain references after Destroy.
type Context struct {
	ExtensionID string

	// Always present.
	Logger  zerolog.Logger
	Config  map[string]any
	DataDir string

	// Gated handles, one per permission token.
	Bot        discord.Client   // discord-client
	Events     *Emitter         // discord-events
	Routes     chi.Router       // api-routes
	Middleware *MiddlewareChain // api-middleware
	DB         *sql.DB          // database
	Cache      cache.Cache      // cache
	WS         *ws.Hub          // websocket
	Metrics    *metrics.Metrics // monitoring
	FS         *os.Root         // filesystem, scoped to DataDir
	HTTPClient *http.Client     // network

	perms *PermissionSet
}

// Permissions returns the extension's granted permission set.
func (c *Context) Permissions() *PermissionSet { return c.perms }

// close releases loader-owned context resources.
func (c *Context) close() {
	if c.FS != nil {
		_ = c.FS.Close()
		c.FS = nil
	}
}

// Emitter is a minimal event emitter private to hook wiring: the loader
// emits the final payload of each Discord hook dispatch on it so granted
// extensions can observe gateway traffic without joining the transform
// fold.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[HookType][]func(data any)
}

func newEmitter() *Emitter {
	return &Emitter{handlers: make(map[HookType][]func(data any))}
}

// On subscribes to a hook type.
func (e *Emitter) On(hook HookType, fn func(data any)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.handlers[hook] = append(e.handlers[hook], fn)
	e.mu.Unlock()
}

func (e *Emitter) emit(hook HookType, data any) {
	e.mu.RLock()
	handlers := make([]func(data any), len(e.handlers[hook]))
	copy(handlers, e.handlers[hook])
	e.mu.RUnlock()

	for _, fn := range handlers {
		func() {
			defer func() { _ = recover() }()
			fn(data)
		}()
	}
}

// MiddlewareChain collects HTTP middleware an extension applies to its
// own route mount.
type MiddlewareChain struct {
	mu  sync.RWMutex
	mws []func(http.Handler) http.Handler
}

// Use appends middleware to the chain.
func (mc *MiddlewareChain) Use(mw func(http.Handler) http.Handler) {
	if mw == nil {
		return
	}
	mc.mu.Lock()
	mc.mws = append(mc.mws, mw)
	mc.mu.Unlock()
}

// wrap applies the chain around a handler, outermost first.
func (mc *MiddlewareChain) wrap(h http.Handler) http.Handler {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	for i := len(mc.mws) - 1; i >= 0; i-- {
		h = mc.mws[i](h)
	}
	return h
}

// contextFactory builds capability contexts from the host singletons.
type contextFactory struct {
	hosts    Hosts
	dataRoot string
	logger   zerolog.Logger
}

// build produces the Context for a manifest's permission set. It is the
// only load step with a side effect before instantiation: the extension's
// exclusive data directory is created if missing. No handle is ever
// granted that the manifest did not declare.
func (f *contextFactory) build(manifest *Manifest, perms *PermissionSet, config map[string]any) (*Context, error) {
	dataDir := filepath.Join(f.dataRoot, manifest.ID)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory for %q: %w", manifest.ID, err)
	}

	if config == nil {
		config = map[string]any{}
	}

	ec := &Context{
		ExtensionID: manifest.ID,
		Logger:      logger.Plugin(f.logger, manifest.ID),
		Config:      config,
		DataDir:     dataDir,
		perms:       perms,
	}

	if perms.Has(PermissionDiscordClient) {
		ec.Bot = f.hosts.Bot
	}
	if perms.Has(PermissionDiscordEvents) {
		ec.Events = newEmitter()
	}
	if perms.Has(PermissionAPIRoutes) {
		ec.Routes = chi.NewRouter()
	}
	if perms.Has(PermissionAPIMiddleware) {
		ec.Middleware = &MiddlewareChain{}
	}
	if perms.Has(PermissionDatabase) {
		ec.DB = f.hosts.DB
	}
	if perms.Has(PermissionCache) {
		ec.Cache = f.hosts.Cache
	}
	if perms.Has(PermissionWebsocket) {
		ec.WS = f.hosts.WS
	}
	if perms.Has(PermissionMonitoring) {
		ec.Metrics = f.hosts.Metrics
	}
	if perms.Has(PermissionFilesystem) {
		root, err := os.OpenRoot(dataDir)
		if err != nil {
			return nil, fmt.Errorf("opening data root for %q: %w", manifest.ID, err)
		}
		ec.FS = root
	}
	if perms.Has(PermissionNetwork) {
		ec.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return ec, nil
}
