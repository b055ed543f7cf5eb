package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for values that would fail at
// startup. It returns the first problem found.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got %q", cfg.Logging.Level)
	}

	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required when cache.backend is redis")
	}

	if cfg.Extensions.CallTimeoutSeconds < 0 {
		return fmt.Errorf("extensions.call_timeout_seconds cannot be negative")
	}
	if cfg.Extensions.MemoryLimitMB < 0 {
		return fmt.Errorf("extensions.memory_limit_mb cannot be negative")
	}

	if cfg.Monitor.HealthCron != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(cfg.Monitor.HealthCron); err != nil {
			return fmt.Errorf("monitor.health_cron is not a valid cron expression: %w", err)
		}
	}

	return nil
}
