package extension

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/subculture-collective/spywatcher/internal/metrics"
)

// HandlerFunc observes or transforms one hook dispatch. The data argument
// is the current accumulator; returning a non-nil value replaces it, and
// a nil value keeps it unchanged. Returned errors are isolated at the
// dispatch boundary and never reach the host.
type HandlerFunc func(ctx context.Context, hc *HookContext, data any) (any, error)

// HookContext carries per-invocation context into a handler.
type HookContext struct {
	Extension string
	Hook      HookType
	Logger    zerolog.Logger
}

// Registration identifies one registered handler so it can be removed by
// identity rather than by hook type.
type Registration struct {
	id        string
	hook      HookType
	extension string
}

// Hook returns the hook type this registration is bound to.
func (r Registration) Hook() HookType { return r.hook }

type registeredHandler struct {
	reg Registration
	fn  HandlerFunc
}

// HookRegistry is the global per-hook-type ordered handler list. Handlers
// run strictly in registration order; the registry is mutated only through
// Register/Unregister, which the loader scopes per extension.
type HookRegistry struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	handlers map[HookType][]*registeredHandler
}

// NewHookRegistry creates an empty registry. Metrics may be nil.
func NewHookRegistry(logger zerolog.Logger, m *metrics.Metrics) *HookRegistry {
	return &HookRegistry{
		logger:   logger.With().Str("component", "hook-registry").Logger(),
		metrics:  m,
		handlers: make(map[HookType][]*registeredHandler),
	}
}

// Register appends a handler for a hook type on behalf of an extension.
func (r *HookRegistry) Register(extensionID string, hook HookType, fn HandlerFunc) (Registration, error) {
	if !ValidHookTypes[hook] {
		return Registration{}, fmt.Errorf("unknown hook type %q", hook)
	}
	if fn == nil {
		return Registration{}, fmt.Errorf("nil handler for hook %q", hook)
	}

	reg := Registration{id: uuid.NewString(), hook: hook, extension: extensionID}

	r.mu.Lock()
	r.handlers[hook] = append(r.handlers[hook], &registeredHandler{reg: reg, fn: fn})
	r.mu.Unlock()

	r.logger.Debug().
		Str("plugin", extensionID).
		Str("hook", string(hook)).
		Msg("Registered hook handler")
	return reg, nil
}

// Unregister removes a single handler by identity. Unknown registrations
// are ignored.
func (r *HookRegistry) Unregister(reg Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handlers := r.handlers[reg.hook]
	for i, h := range handlers {
		if h.reg.id == reg.id {
			r.handlers[reg.hook] = append(handlers[:i], handlers[i+1:]...)
			return
		}
	}
}

// UnregisterExtension removes every handler an extension registered and
// returns how many were removed.
func (r *HookRegistry) UnregisterExtension(extensionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for hook, handlers := range r.handlers {
		filtered := handlers[:0]
		for _, h := range handlers {
			if h.reg.extension == extensionID {
				removed++
				continue
			}
			filtered = append(filtered, h)
		}
		r.handlers[hook] = filtered
	}
	return removed
}

// HandlerCount returns the number of handlers registered for a hook type.
func (r *HookRegistry) HandlerCount(hook HookType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[hook])
}

// Execute dispatches a hook: handlers run in registration order as a fold
// over the payload. A handler error (or panic) is logged and dispatch
// continues with the last good accumulator; the final accumulator is
// returned. An empty handler list returns the input unchanged.
func (r *HookRegistry) Execute(ctx context.Context, hook HookType, data any) any {
	r.mu.RLock()
	handlers := append([]*registeredHandler(nil), r.handlers[hook]...)
	r.mu.RUnlock()

	if r.metrics != nil {
		r.metrics.HookExecutionsTotal.WithLabelValues(string(hook)).Inc()
	}
	if len(handlers) == 0 {
		return data
	}

	start := time.Now()
	acc := data

	for _, h := range handlers {
		result, err := r.invoke(ctx, h, acc)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("plugin", h.reg.extension).
				Str("hook", string(hook)).
				Msg("Hook handler failed, continuing with last good value")
			if r.metrics != nil {
				r.metrics.HookHandlerErrorsTotal.
					WithLabelValues(string(hook), h.reg.extension).Inc()
			}
			continue
		}
		if result != nil {
			acc = result
		}
	}

	if r.metrics != nil {
		r.metrics.HookDuration.
			WithLabelValues(string(hook)).
			Observe(time.Since(start).Seconds())
	}
	return acc
}

// invoke runs one handler, converting panics into errors so a defective
// extension cannot take down dispatch.
func (r *HookRegistry) invoke(ctx context.Context, h *registeredHandler, acc any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()

	hc := &HookContext{
		Extension: h.reg.extension,
		Hook:      h.reg.hook,
		Logger:    r.logger.With().Str("plugin", h.reg.extension).Logger(),
	}
	return h.fn(ctx, hc, acc)
}

// Hooks is the per-extension handle passed to RegisterHooks. It scopes
// registration to the owning extension, enforces the discord-events
// permission for gateway hooks, and remembers registrations so the loader
// can clean up on unload.
type Hooks struct {
	registry *HookRegistry
	perms    *PermissionSet
	owner    string

	mu   sync.Mutex
	regs []Registration
}

func newHooks(registry *HookRegistry, perms *PermissionSet, owner string) *Hooks {
	return &Hooks{registry: registry, perms: perms, owner: owner}
}

// Register appends a handler to the global registry on behalf of the
// owning extension.
func (h *Hooks) Register(hook HookType, fn HandlerFunc) (Registration, error) {
	if IsDiscordHook(hook) {
		if err := h.perms.Require(PermissionDiscordEvents); err != nil {
			return Registration{}, err
		}
	}

	reg, err := h.registry.Register(h.owner, hook, fn)
	if err != nil {
		return Registration{}, err
	}

	h.mu.Lock()
	h.regs = append(h.regs, reg)
	h.mu.Unlock()
	return reg, nil
}

// Unregister removes a previously registered handler by identity.
func (h *Hooks) Unregister(reg Registration) {
	h.registry.Unregister(reg)

	h.mu.Lock()
	for i, r := range h.regs {
		if r.id == reg.id {
			h.regs = append(h.regs[:i], h.regs[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
}

// close removes any handlers still registered.
func (h *Hooks) close() {
	h.mu.Lock()
	regs := h.regs
	h.regs = nil
	h.mu.Unlock()

	for _, reg := range regs {
		h.registry.Unregister(reg)
	}
}
