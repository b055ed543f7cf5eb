package extension

import (
	"sync"
	"time"
)

// State is the lifecycle state of one loaded extension instance.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateInitialized
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// validTransitions defines allowed state transitions as an adjacency list.
// error is reachable from initializing, starting, and stopping; stopped
// may be restarted; error requires external intervention.
var validTransitions = map[State]map[State]bool{
	StateUninitialized: {
		StateInitializing: true,
	},
	StateInitializing: {
		StateInitialized: true,
		StateError:       true,
	},
	StateInitialized: {
		StateStarting: true,
	},
	StateStarting: {
		StateRunning: true,
		StateError:   true,
	},
	StateRunning: {
		StateStopping: true,
	},
	StateStopping: {
		StateStopped: true,
		StateError:   true,
	},
	StateStopped: {
		StateStarting: true,
	},
	StateError: {},
}

// ValidTransition reports whether moving from one state to another is legal.
func ValidTransition(from, to State) bool {
	allowed, exists := validTransitions[from][to]
	return exists && allowed
}

// Instance pairs one loaded extension implementation with its lifecycle
// state, capability context, load timestamp, and last error. State is
// mutated only by the Loader.
type Instance struct {
	id       string
	manifest *Manifest
	impl     Extension
	context  *Context
	loadedAt time.Time

	// kill tears down a subprocess-backed implementation; nil for
	// builtins.
	kill func()

	// opMu serializes lifecycle operations for this instance. Hook
	// handlers and lifecycle callbacks for one instance never run
	// concurrently with each other.
	opMu sync.Mutex

	mu      sync.RWMutex
	state   State
	lastErr error
}

func newInstance(manifest *Manifest, impl Extension, ectx *Context, kill func()) *Instance {
	return &Instance{
		id:       manifest.ID,
		manifest: manifest,
		impl:     impl,
		context:  ectx,
		loadedAt: time.Now(),
		kill:     kill,
		state:    StateUninitialized,
	}
}

// ID returns the extension id.
func (i *Instance) ID() string { return i.id }

// Manifest returns the extension's manifest.
func (i *Instance) Manifest() *Manifest { return i.manifest }

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Err returns the last recorded error, if any.
func (i *Instance) Err() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lastErr
}

// LoadedAt returns the load timestamp.
func (i *Instance) LoadedAt() time.Time { return i.loadedAt }

// transitionTo moves the instance to a new state, enforcing the
// transition table.
func (i *Instance) transitionTo(newState State, trigger string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !ValidTransition(i.state, newState) {
		return &InvalidStateError{ID: i.id, From: i.state, Trigger: trigger}
	}
	i.state = newState
	return nil
}

// fail records an error and forces the instance into the error state.
func (i *Instance) fail(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = StateError
	i.lastErr = err
}

// info returns a read snapshot for external callers.
func (i *Instance) info() InstanceInfo {
	i.mu.RLock()
	defer i.mu.RUnlock()

	inst := InstanceInfo{
		ID:          i.id,
		Name:        i.manifest.Name,
		Version:     i.manifest.Version,
		Author:      i.manifest.Author,
		Description: i.manifest.Description,
		State:       i.state.String(),
		LoadedAt:    i.loadedAt,
	}
	if i.lastErr != nil {
		inst.Error = i.lastErr.Error()
	}
	return inst
}
