package extension

import (
	"net/http"
	"strings"
	"sync"
)

// Mounter exposes extension routes under a shared prefix. Routers are
// added and removed while the server is running, which chi's own router
// does not allow, so dispatch goes through a lock-guarded map instead.
//
// The server mounts it with a stripped prefix; the first remaining path
// segment selects the extension.
type Mounter struct {
	mu      sync.RWMutex
	routers map[string]http.Handler
}

func NewMounter() *Mounter {
	return &Mounter{routers: make(map[string]http.Handler)}
}

// Mount registers an extension's handler. An existing handler for the
// same id is replaced.
func (m *Mounter) Mount(id string, h http.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routers[id] = h
}

// Unmount removes an extension's handler. Unknown ids are a no-op.
func (m *Mounter) Unmount(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.routers, id)
}

// Mounted reports whether the extension currently has routes exposed.
func (m *Mounter) Mounted(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.routers[id]
	return ok
}

func (m *Mounter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	m.mu.RLock()
	h, ok := m.routers[id]
	m.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	r2 := r.Clone(r.Context())
	r2.URL.Path = "/" + rest
	h.ServeHTTP(w, r2)
}
