// Package extension implements the runtime that discovers, validates,
// loads, permission-scopes, and supervises third-party extensions, and
// routes host lifecycle events through an ordered, fault-isolated hook
// pipeline extensions can observe and transform.
package extension

import (
	"time"
)

// Permission is a capability token an extension may declare in its
// manifest. Each token gates exactly one handle in the Context.
type Permission string

const (
	PermissionDiscordClient Permission = "discord-client"
	PermissionDiscordEvents Permission = "discord-events"
	PermissionAPIRoutes     Permission = "api-routes"
	PermissionAPIMiddleware Permission = "api-middleware"
	PermissionDatabase      Permission = "database"
	PermissionCache         Permission = "cache"
	PermissionWebsocket     Permission = "websocket"
	PermissionMonitoring    Permission = "monitoring"
	PermissionFilesystem    Permission = "filesystem"
	PermissionNetwork       Permission = "network"
)

// ValidPermissions is the closed set of recognized permission tokens.
var ValidPermissions = map[Permission]bool{
	PermissionDiscordClient: true,
	PermissionDiscordEvents: true,
	PermissionAPIRoutes:     true,
	PermissionAPIMiddleware: true,
	PermissionDatabase:      true,
	PermissionCache:         true,
	PermissionWebsocket:     true,
	PermissionMonitoring:    true,
	PermissionFilesystem:    true,
	PermissionNetwork:       true,
}

// HookType names an extension point in the host's event stream.
type HookType string

const (
	HookDiscordReady             HookType = "discord-ready"
	HookDiscordPresenceUpdate    HookType = "discord-presence-update"
	HookDiscordMessageCreate     HookType = "discord-message-create"
	HookDiscordGuildMemberAdd    HookType = "discord-guild-member-add"
	HookDiscordGuildMemberRemove HookType = "discord-guild-member-remove"
	HookAnalyticsBeforeCalculate HookType = "analytics-before-calculate"
	HookAnalyticsAfterCalculate  HookType = "analytics-after-calculate"
	HookAPIRequest               HookType = "api-request"
	HookAPIResponse              HookType = "api-response"
	HookWebsocketConnect         HookType = "websocket-connect"
	HookWebsocketDisconnect      HookType = "websocket-disconnect"
)

// ValidHookTypes is the closed hook type catalog.
var ValidHookTypes = map[HookType]bool{
	HookDiscordReady:             true,
	HookDiscordPresenceUpdate:    true,
	HookDiscordMessageCreate:     true,
	HookDiscordGuildMemberAdd:    true,
	HookDiscordGuildMemberRemove: true,
	HookAnalyticsBeforeCalculate: true,
	HookAnalyticsAfterCalculate:  true,
	HookAPIRequest:               true,
	HookAPIResponse:              true,
	HookWebsocketConnect:         true,
	HookWebsocketDisconnect:      true,
}

// IsDiscordHook reports whether a hook type belongs to the Discord gateway
// event family, which requires the discord-events permission to observe.
func IsDiscordHook(hook HookType) bool {
	switch hook {
	case HookDiscordReady, HookDiscordPresenceUpdate, HookDiscordMessageCreate,
		HookDiscordGuildMemberAdd, HookDiscordGuildMemberRemove:
		return true
	}
	return false
}

// Dependency declares that an extension requires another extension to be
// loaded first. Version is an optional semver constraint (e.g. "^1.0.0").
type Dependency struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
}

// Manifest is the immutable descriptor read from manifest.json in an
// extension directory.
type Manifest struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	Author       string         `json:"author"`
	Description  string         `json:"description,omitempty"`
	Homepage     string         `json:"homepage,omitempty"`
	Main         string         `json:"main,omitempty"`
	Dependencies []Dependency   `json:"dependencies,omitempty"`
	Permissions  []Permission   `json:"permissions,omitempty"`
	ConfigSchema map[string]any `json:"configSchema,omitempty"`
}

// DiscoveredExtension is an extension directory found during discovery.
type DiscoveredExtension struct {
	DirID        string
	Path         string
	ManifestPath string
}

// Health is one extension's health probe result. When an extension does
// not expose its own probe, the loader synthesizes one from lifecycle
// state.
type Health struct {
	Healthy bool           `json:"healthy"`
	State   string         `json:"state"`
	Error   string         `json:"error,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// LoadResult summarizes a bulk load.
type LoadResult struct {
	Loaded []string
	Failed []string
	Errors map[string]error
}

// InstanceInfo is a read snapshot of one loaded instance, safe to hand to
// callers outside the loader.
type InstanceInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Author      string    `json:"author"`
	Description string    `json:"description,omitempty"`
	State       string    `json:"state"`
	LoadedAt    time.Time `json:"loadedAt"`
	Error       string    `json:"error,omitempty"`
}

// Config is the host-supplied loader configuration.
type Config struct {
	// ExtensionsDir is the root directory scanned for extension
	// subdirectories.
	ExtensionsDir string

	// DataDir is the root under which each extension gets an exclusive
	// data directory.
	DataDir string

	// AutoStart starts each extension immediately after a successful load.
	AutoStart bool

	// PreSortDependencies topologically orders discovered extensions by
	// their declared dependencies before bulk loading, so declaration
	// order never decides load success. Off by default: load order then
	// follows discovery enumeration.
	PreSortDependencies bool

	// CallTimeout bounds every extension lifecycle callback and remote
	// hook invocation. Zero means no deadline.
	CallTimeout time.Duration

	// SandboxEnabled and MemoryLimitMB are declared for host-level
	// enforcement; the runtime records but does not act on them.
	SandboxEnabled bool
	MemoryLimitMB  int
}
