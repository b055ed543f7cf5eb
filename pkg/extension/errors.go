package extension

import "fmt"

// ManifestError reports a malformed or incomplete manifest. The load it
// aborts leaves no partial state behind.
type ManifestError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ManifestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid manifest %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid manifest %s: %s", e.Path, e.Reason)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// DuplicateError reports an id collision with an already loaded extension.
type DuplicateError struct {
	ID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("extension %q is already loaded", e.ID)
}

// DependencyError reports an unmet dependency at load time.
type DependencyError struct {
	ID         string // extension being loaded
	Missing    string // dependency id that is absent or incompatible
	Constraint string // semver constraint, if one was declared
	Reason     string
}

func (e *DependencyError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("extension %q dependency %q (%s): %s", e.ID, e.Missing, e.Constraint, e.Reason)
	}
	return fmt.Sprintf("extension %q dependency %q: %s", e.ID, e.Missing, e.Reason)
}

// ModuleLoadError reports that the entry implementation could not be
// resolved or instantiated.
type ModuleLoadError struct {
	ID  string
	Err error
}

func (e *ModuleLoadError) Error() string {
	return fmt.Sprintf("loading extension module %q: %v", e.ID, e.Err)
}

func (e *ModuleLoadError) Unwrap() error { return e.Err }

// InvalidStateError reports an illegal lifecycle transition request. The
// instance state is unchanged.
type InvalidStateError struct {
	ID      string
	From    State
	Trigger string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("extension %q: cannot %s from state %s", e.ID, e.Trigger, e.From)
}

// LifecycleError reports a failure thrown by an extension callback during
// init, start, or stop. The instance transitions to the error state and
// the underlying cause is recorded.
type LifecycleError struct {
	ID    string
	Phase string // init, start, stop
	Err   error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("extension %q %s failed: %v", e.ID, e.Phase, e.Err)
}

func (e *LifecycleError) Unwrap() error { return e.Err }

// PermissionError reports use of a capability the manifest never declared.
type PermissionError struct {
	ID         string
	Permission Permission
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("extension %q: permission denied: %s", e.ID, e.Permission)
}
