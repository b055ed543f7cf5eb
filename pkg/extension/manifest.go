package extension

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// extensionIDRe validates extension id format (lowercase alphanumeric
	// with hyphens).
	extensionIDRe = regexp.MustCompile(`^[a-z0-9-]+$`)

	// semverRe validates plain MAJOR.MINOR.PATCH versions.
	semverRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// manifestLoader reads and validates manifest.json files. Validation is
// complete before any side effect: a rejected manifest leaves no state
// behind.
type manifestLoader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

func newManifestLoader(logger zerolog.Logger) *manifestLoader {
	return &manifestLoader{
		logger:       logger.With().Str("component", "manifest-loader").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(manifestSchema),
	}
}

// Load reads and validates a manifest file. Every failure is a
// *ManifestError.
func (m *manifestLoader) Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Reason: "reading manifest", Err: err}
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, &ManifestError{Path: path, Reason: "parsing manifest JSON", Err: err}
	}

	if err := m.validateSchema(path, data); err != nil {
		return nil, err
	}
	if err := m.validate(path, &manifest); err != nil {
		return nil, err
	}

	m.logger.Debug().
		Str("id", manifest.ID).
		Str("version", manifest.Version).
		Msg("Loaded manifest")
	return &manifest, nil
}

func (m *manifestLoader) validateSchema(path string, data []byte) error {
	result, err := gojsonschema.Validate(m.schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &ManifestError{Path: path, Reason: "schema validation", Err: err}
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return &ManifestError{Path: path, Reason: strings.Join(msgs, "; ")}
	}
	return nil
}

// validate applies checks beyond the JSON schema.
func (m *manifestLoader) validate(path string, manifest *Manifest) error {
	for field, value := range map[string]string{
		"id":      manifest.ID,
		"name":    manifest.Name,
		"version": manifest.Version,
		"author":  manifest.Author,
	} {
		if strings.TrimSpace(value) == "" {
			return &ManifestError{Path: path, Reason: fmt.Sprintf("%s must be a non-empty string", field)}
		}
	}

	if !extensionIDRe.MatchString(manifest.ID) {
		return &ManifestError{Path: path,
			Reason: fmt.Sprintf("invalid id %q (must be lowercase alphanumeric with hyphens)", manifest.ID)}
	}
	if !semverRe.MatchString(manifest.Version) {
		return &ManifestError{Path: path,
			Reason: fmt.Sprintf("invalid version %q (must be semver: X.Y.Z)", manifest.Version)}
	}

	for i, perm := range manifest.Permissions {
		if !ValidPermissions[perm] {
			return &ManifestError{Path: path,
				Reason: fmt.Sprintf("permissions[%d]: unknown permission %q", i, perm)}
		}
	}

	for i, dep := range manifest.Dependencies {
		if strings.TrimSpace(dep.ID) == "" {
			return &ManifestError{Path: path,
				Reason: fmt.Sprintf("dependencies[%d]: id cannot be empty", i)}
		}
	}

	return nil
}

// validateConfig checks an extension's config map against the manifest's
// optional configSchema.
func validateConfig(manifest *Manifest, config map[string]any) error {
	if len(manifest.ConfigSchema) == 0 {
		return nil
	}

	schemaJSON, err := json.Marshal(manifest.ConfigSchema)
	if err != nil {
		return fmt.Errorf("encoding config schema: %w", err)
	}
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("config schema validation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return fmt.Errorf("config rejected by schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}
