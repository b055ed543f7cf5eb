package extension

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/subculture-collective/spywatcher/internal/metrics"
)

// Manager is the process-wide access point to the extension runtime. It
// exists so host subsystems (gateway event pump, HTTP middleware,
// analytics jobs) can dispatch hooks without threading a loader handle
// through every constructor. Before Initialize, dispatch is a pass
// through.
type Manager struct {
	mu     sync.RWMutex
	loader *Loader
}

var defaultManager = &Manager{}

// Default returns the shared manager.
func Default() *Manager { return defaultManager }

// Initialize builds the loader and performs the initial bulk load.
// Calling it twice is an error; Shutdown resets it.
func (m *Manager) Initialize(ctx context.Context, cfg Config, hosts Hosts, log zerolog.Logger, mtr *metrics.Metrics) (*LoadResult, error) {
	m.mu.Lock()
	if m.loader != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("extension manager already initialized")
	}
	loader := NewLoader(cfg, hosts, log, mtr)
	m.loader = loader
	m.mu.Unlock()

	return loader.LoadAll(ctx), nil
}

// Loader returns the active loader, or nil before Initialize.
func (m *Manager) Loader() *Loader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loader
}

// ExecuteHook dispatches through the active loader. When the manager is
// not initialized the payload passes through unchanged, so host call
// sites never need a readiness check.
func (m *Manager) ExecuteHook(ctx context.Context, hook HookType, data any) any {
	loader := m.Loader()
	if loader == nil {
		return data
	}
	return loader.ExecuteHook(ctx, hook, data)
}

// Shutdown tears the runtime down and returns the manager to its
// uninitialized state.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	loader := m.loader
	m.loader = nil
	m.mu.Unlock()

	if loader != nil {
		loader.Shutdown(ctx)
	}
}
