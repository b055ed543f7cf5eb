package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/subculture-collective/spywatcher/pkg/extension"
)

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealthz)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	if s.hub != nil {
		r.Get("/ws", s.hub.ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.hookMiddleware)

		r.Get("/stats", s.handleStats)

		r.Route("/extensions", func(r chi.Router) {
			r.Get("/", s.handleListExtensions)
			r.Get("/health", s.handleAllHealth)
			r.Post("/{id}/load", s.handleLoadExtension)
			r.Get("/{id}", s.handleGetExtension)
			r.Delete("/{id}", s.handleUnloadExtension)
			r.Post("/{id}/start", s.handleStartExtension)
			r.Post("/{id}/stop", s.handleStopExtension)
			r.Get("/{id}/health", s.handleExtensionHealth)
		})
	})

	// Extension-provided routes, mounted and unmounted at runtime.
	if loader := s.manager.Loader(); loader != nil {
		r.Handle("/extensions/plugins/*",
			http.StripPrefix("/extensions/plugins", loader.Mounter()))
	}
}

// hookMiddleware dispatches the api-request hook before the handler runs
// and the api-response hook after, carrying request metadata as a map.
// Extensions observe; they cannot block or rewrite the request itself.
func (s *Server) hookMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.manager.ExecuteHook(r.Context(), extension.HookAPIRequest, map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"remote": r.RemoteAddr,
		})

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.manager.ExecuteHook(r.Context(), extension.HookAPIResponse, map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "event store disabled")
		return
	}
	since := time.Now().Add(-24 * time.Hour)
	s.manager.ExecuteHook(r.Context(), extension.HookAnalyticsBeforeCalculate,
		map[string]any{"since": since})

	counts, err := s.store.CountEventsSince(r.Context(), since)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload := map[string]any{
		"presence": counts.Presence,
		"messages": counts.Messages,
		"members":  counts.Members,
	}
	if out, ok := s.manager.ExecuteHook(r.Context(),
		extension.HookAnalyticsAfterCalculate, payload).(map[string]any); ok {
		payload = out
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleListExtensions(w http.ResponseWriter, r *http.Request) {
	loader := s.manager.Loader()
	if loader == nil {
		s.writeError(w, http.StatusServiceUnavailable, "extension runtime not initialized")
		return
	}
	s.writeJSON(w, http.StatusOK, loader.Instances())
}

func (s *Server) handleGetExtension(w http.ResponseWriter, r *http.Request) {
	loader := s.manager.Loader()
	if loader == nil {
		s.writeError(w, http.StatusServiceUnavailable, "extension runtime not initialized")
		return
	}
	info, ok := loader.Instance(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "extension not loaded")
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleLoadExtension(w http.ResponseWriter, r *http.Request) {
	loader := s.manager.Loader()
	if loader == nil {
		s.writeError(w, http.StatusServiceUnavailable, "extension runtime not initialized")
		return
	}

	id := chi.URLParam(r, "id")
	if err := loader.Load(r.Context(), id); err != nil {
		s.writeLoadError(w, err)
		return
	}
	info, _ := loader.Instance(id)
	s.writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleUnloadExtension(w http.ResponseWriter, r *http.Request) {
	loader := s.manager.Loader()
	if loader == nil {
		s.writeError(w, http.StatusServiceUnavailable, "extension runtime not initialized")
		return
	}
	if err := loader.Unload(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartExtension(w http.ResponseWriter, r *http.Request) {
	s.lifecycleAction(w, r, func(loader *extension.Loader, id string) error {
		return loader.Start(r.Context(), id)
	})
}

func (s *Server) handleStopExtension(w http.ResponseWriter, r *http.Request) {
	s.lifecycleAction(w, r, func(loader *extension.Loader, id string) error {
		return loader.Stop(r.Context(), id)
	})
}

func (s *Server) lifecycleAction(w http.ResponseWriter, r *http.Request, action func(*extension.Loader, string) error) {
	loader := s.manager.Loader()
	if loader == nil {
		s.writeError(w, http.StatusServiceUnavailable, "extension runtime not initialized")
		return
	}

	id := chi.URLParam(r, "id")
	if err := action(loader, id); err != nil {
		var stateErr *extension.InvalidStateError
		if errors.As(err, &stateErr) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	info, _ := loader.Instance(id)
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleExtensionHealth(w http.ResponseWriter, r *http.Request) {
	loader := s.manager.Loader()
	if loader == nil {
		s.writeError(w, http.StatusServiceUnavailable, "extension runtime not initialized")
		return
	}
	health, err := loader.Health(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleAllHealth(w http.ResponseWriter, r *http.Request) {
	loader := s.manager.Loader()
	if loader == nil {
		s.writeError(w, http.StatusServiceUnavailable, "extension runtime not initialized")
		return
	}
	s.writeJSON(w, http.StatusOK, loader.HealthAll(r.Context()))
}

// writeLoadError maps the load error taxonomy onto HTTP statuses.
func (s *Server) writeLoadError(w http.ResponseWriter, err error) {
	var (
		manifestErr *extension.ManifestError
		dupErr      *extension.DuplicateError
		depErr      *extension.DependencyError
	)
	switch {
	case errors.As(err, &manifestErr):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &dupErr):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &depErr):
		s.writeError(w, http.StatusFailedDependency, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
