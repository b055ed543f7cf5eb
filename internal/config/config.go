package config

// Config is the main Spywatcher configuration.
type Config struct {
	// Discord
	Discord DiscordConfig `json:"discord" mapstructure:"discord"`

	// HTTP API server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Event store
	Database DatabaseConfig `json:"database" mapstructure:"database"`

	// Cache / pubsub
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// Extension runtime
	Extensions ExtensionsConfig `json:"extensions" mapstructure:"extensions"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Prometheus metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Background monitoring jobs
	Monitor MonitorConfig `json:"monitor" mapstructure:"monitor"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// DiscordConfig holds the bot connection settings.
type DiscordConfig struct {
	Token    string   `json:"token" mapstructure:"token"`
	GuildIDs []string `json:"guild_ids" mapstructure:"guild_ids"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Host           string   `json:"host" mapstructure:"host"`
	Port           int      `json:"port" mapstructure:"port"`
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
}

// DatabaseConfig holds the sqlite event store settings.
type DatabaseConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// CacheConfig selects the cache backend. Backend is "memory" or "redis".
type CacheConfig struct {
	Backend  string `json:"backend" mapstructure:"backend"`
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
}

// ExtensionsConfig holds the extension runtime settings.
type ExtensionsConfig struct {
	Dir                 string `json:"dir" mapstructure:"dir"`
	DataDir             string `json:"data_dir" mapstructure:"data_dir"`
	AutoStart           bool   `json:"auto_start" mapstructure:"auto_start"`
	PreSortDependencies bool   `json:"pre_sort_dependencies" mapstructure:"pre_sort_dependencies"`
	CallTimeoutSeconds  int    `json:"call_timeout_seconds" mapstructure:"call_timeout_seconds"`
	Watch               bool   `json:"watch" mapstructure:"watch"`
	SandboxEnabled      bool   `json:"sandbox_enabled" mapstructure:"sandbox_enabled"`
	MemoryLimitMB       int    `json:"memory_limit_mb" mapstructure:"memory_limit_mb"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// MonitorConfig holds the background job settings. HealthCron is a cron
// expression for the extension health sweep.
type MonitorConfig struct {
	HealthCron string `json:"health_cron" mapstructure:"health_cron"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8090,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{},
		Cache: CacheConfig{
			Backend: "memory",
			Addr:    "localhost:6379",
		},
		Extensions: ExtensionsConfig{
			AutoStart:          true,
			CallTimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Monitor: MonitorConfig{
			HealthCron: "@every 1m",
		},
	}
}
