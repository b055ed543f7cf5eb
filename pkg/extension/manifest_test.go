package extension

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createManifestFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func TestManifestLoader_Load(t *testing.T) {
	loader := newManifestLoader(testLogger())

	t.Run("loads minimal valid manifest", func(t *testing.T) {
		path := createManifestFile(t, `{
			"id": "presence-tracker",
			"name": "Presence Tracker",
			"version": "1.0.0",
			"author": "Test Author"
		}`)
		result, err := loader.Load(path)

		require.NoError(t, err)
		assert.Equal(t, "presence-tracker", result.ID)
		assert.Equal(t, "Presence Tracker", result.Name)
		assert.Equal(t, "1.0.0", result.Version)
		assert.Equal(t, "Test Author", result.Author)
	})

	t.Run("loads manifest with all optional fields", func(t *testing.T) {
		path := createManifestFile(t, `{
			"id": "full-extension",
			"name": "Full Extension",
			"version": "2.1.3",
			"author": "Someone",
			"description": "Does everything",
			"homepage": "https://example.com",
			"main": "run.bin",
			"dependencies": [
				{"id": "presence-tracker", "version": "^1.0.0"},
				{"id": "other"}
			],
			"permissions": ["discord-events", "database"],
			"configSchema": {"type": "object"}
		}`)
		result, err := loader.Load(path)

		require.NoError(t, err)
		assert.Equal(t, "full-extension", result.ID)
		assert.Equal(t, "run.bin", result.Main)
		assert.Len(t, result.Dependencies, 2)
		assert.Equal(t, "^1.0.0", result.Dependencies[0].Version)
		assert.Len(t, result.Permissions, 2)
		assert.NotNil(t, result.ConfigSchema)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loader.Load(filepath.Join(t.TempDir(), "manifest.json"))

		var merr *ManifestError
		require.ErrorAs(t, err, &merr)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		path := createManifestFile(t, `{"id": "x",`)
		_, err := loader.Load(path)

		var merr *ManifestError
		require.ErrorAs(t, err, &merr)
	})

	t.Run("missing required fields", func(t *testing.T) {
		path := createManifestFile(t, `{"id": "x-ext", "name": "X"}`)
		_, err := loader.Load(path)

		var merr *ManifestError
		require.ErrorAs(t, err, &merr)
	})

	t.Run("whitespace only field rejected", func(t *testing.T) {
		path := createManifestFile(t, `{
			"id": "x-ext", "name": "  ", "version": "1.0.0", "author": "a"
		}`)
		_, err := loader.Load(path)

		var merr *ManifestError
		require.ErrorAs(t, err, &merr)
		assert.Contains(t, err.Error(), "name")
	})

	t.Run("invalid id format", func(t *testing.T) {
		for _, id := range []string{"Bad_ID", "has space", "UPPER", "dot.ted"} {
			path := createManifestFile(t, `{
				"id": "`+id+`", "name": "X", "version": "1.0.0", "author": "a"
			}`)
			_, err := loader.Load(path)

			var merr *ManifestError
			require.ErrorAs(t, err, &merr, "id %q should be rejected", id)
		}
	})

	t.Run("invalid version", func(t *testing.T) {
		for _, v := range []string{"1.0", "v1.0.0", "1.0.0-beta", "abc"} {
			path := createManifestFile(t, `{
				"id": "x-ext", "name": "X", "version": "`+v+`", "author": "a"
			}`)
			_, err := loader.Load(path)

			var merr *ManifestError
			require.ErrorAs(t, err, &merr, "version %q should be rejected", v)
		}
	})

	t.Run("unknown permission rejected", func(t *testing.T) {
		path := createManifestFile(t, `{
			"id": "x-ext", "name": "X", "version": "1.0.0", "author": "a",
			"permissions": ["discord-events", "root-access"]
		}`)
		_, err := loader.Load(path)

		var merr *ManifestError
		require.ErrorAs(t, err, &merr)
		assert.Contains(t, err.Error(), "root-access")
	})

	t.Run("empty dependency id rejected", func(t *testing.T) {
		path := createManifestFile(t, `{
			"id": "x-ext", "name": "X", "version": "1.0.0", "author": "a",
			"dependencies": [{"id": ""}]
		}`)
		_, err := loader.Load(path)

		var merr *ManifestError
		require.ErrorAs(t, err, &merr)
	})
}

func TestValidateConfig(t *testing.T) {
	t.Run("no schema accepts anything", func(t *testing.T) {
		m := &Manifest{ID: "x"}
		assert.NoError(t, validateConfig(m, map[string]any{"whatever": 1}))
	})

	t.Run("schema accepts conforming config", func(t *testing.T) {
		m := &Manifest{ID: "x", ConfigSchema: map[string]any{
			"type":     "object",
			"required": []any{"interval"},
			"properties": map[string]any{
				"interval": map[string]any{"type": "number"},
			},
		}}
		assert.NoError(t, validateConfig(m, map[string]any{"interval": 5}))
	})

	t.Run("schema rejects nonconforming config", func(t *testing.T) {
		m := &Manifest{ID: "x", ConfigSchema: map[string]any{
			"type":     "object",
			"required": []any{"interval"},
		}}
		err := validateConfig(m, map[string]any{})
		require.Error(t, err)
	})
}
