package extension

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMounter(t *testing.T) {
	echoPath := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	})

	t.Run("routes by first path segment and strips it", func(t *testing.T) {
		m := NewMounter()
		m.Mount("tracker", echoPath)

		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tracker/stats/daily", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/stats/daily", rec.Body.String())
	})

	t.Run("unknown extension is 404", func(t *testing.T) {
		m := NewMounter()
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nobody/x", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("empty path is 404", func(t *testing.T) {
		m := NewMounter()
		m.Mount("tracker", echoPath)
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unmount removes routing", func(t *testing.T) {
		m := NewMounter()
		m.Mount("tracker", echoPath)
		assert.True(t, m.Mounted("tracker"))

		m.Unmount("tracker")
		assert.False(t, m.Mounted("tracker"))

		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tracker/x", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("mount replaces existing handler", func(t *testing.T) {
		m := NewMounter()
		m.Mount("tracker", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		m.Mount("tracker", echoPath)

		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tracker/y", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
