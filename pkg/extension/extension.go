package extension

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Extension is the interface every extension implementation satisfies.
// Init is the only required method; further capabilities are discovered
// through the optional interfaces below.
type Extension interface {
	// Init prepares the extension with its capability context. The
	// extension borrows the context for its lifetime and must not retain
	// references after Destroy.
	Init(ctx context.Context, ec *Context) error
}

// Starter is implemented by extensions with work to begin after init.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by extensions that need orderly shutdown.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Destroyer is implemented by extensions that release resources on unload.
type Destroyer interface {
	Destroy(ctx context.Context) error
}

// HookRegistrar is implemented by extensions that observe or transform
// host events. The handle is scoped to append and remove entries in the
// loader's global registry on this extension's behalf.
type HookRegistrar interface {
	RegisterHooks(h *Hooks) error
}

// RouteRegistrar is implemented by extensions that expose HTTP endpoints.
// Routes are only mounted when the manifest declares api-routes.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// HealthChecker is implemented by extensions with an authoritative health
// probe. Without it, health is synthesized from lifecycle state.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// Factory constructs a fresh extension implementation.
type Factory func() Extension

var (
	builtinsMu sync.RWMutex
	builtins   = make(map[string]Factory)
)

// RegisterBuiltin registers an in-process extension factory under a
// manifest id. A builtin takes precedence over the manifest's main
// executable during entry resolution. Registering the same id twice
// panics; builtins are wired at program start.
func RegisterBuiltin(id string, factory Factory) {
	builtinsMu.Lock()
	defer builtinsMu.Unlock()

	if factory == nil {
		panic(fmt.Sprintf("extension: nil factory for builtin %q", id))
	}
	if _, exists := builtins[id]; exists {
		panic(fmt.Sprintf("extension: builtin %q registered twice", id))
	}
	builtins[id] = factory
}

// lookupBuiltin returns the registered factory for an id, if any.
func lookupBuiltin(id string) (Factory, bool) {
	builtinsMu.RLock()
	defer builtinsMu.RUnlock()
	factory, ok := builtins[id]
	return factory, ok
}

// Builtins returns the sorted ids of all registered builtin factories.
func Builtins() []string {
	builtinsMu.RLock()
	defer builtinsMu.RUnlock()

	ids := make([]string, 0, len(builtins))
	for id := range builtins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
