package extension

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Inspect validates every discovered manifest under root without loading
// anything. It returns the valid manifests in discovery order and the
// validation failure per directory id for the rest.
func Inspect(root string) ([]*Manifest, map[string]error, error) {
	log := zerolog.Nop()
	discovered, err := discover(root, log)
	if err != nil {
		return nil, nil, err
	}

	loader := newManifestLoader(log)
	var manifests []*Manifest
	failures := make(map[string]error)
	for _, d := range discovered {
		manifest, err := loader.Load(d.ManifestPath)
		if err != nil {
			failures[d.DirID] = err
			continue
		}
		manifests = append(manifests, manifest)
	}
	return manifests, failures, nil
}

// discover scans the extensions root for subdirectories containing a
// manifest.json. Enumeration order is whatever the directory listing
// yields; bulk loads follow it unless dependency pre-sorting is enabled.
func discover(root string, logger zerolog.Logger) ([]DiscoveredExtension, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("dir", root).Msg("Extensions directory does not exist, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("stat extensions directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading extensions directory %s: %w", root, err)
	}

	var discovered []DiscoveredExtension
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		manifestPath := filepath.Join(dir, "manifest.json")
		if _, err := os.Stat(manifestPath); err != nil {
			if !os.IsNotExist(err) {
				logger.Warn().Err(err).Str("dir", dir).Msg("Failed to check for manifest.json")
			}
			continue
		}

		discovered = append(discovered, DiscoveredExtension{
			DirID:        entry.Name(),
			Path:         dir,
			ManifestPath: manifestPath,
		})
		logger.Debug().Str("id", entry.Name()).Str("path", dir).Msg("Discovered extension")
	}

	return discovered, nil
}
