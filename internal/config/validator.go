package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for:
//   - Required fields
//   - Ranges of the engine settings
//   - A parseable log level and a document path when autoload or watch is on
//
// Every problem is reported, not just the first.
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if cfg.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if cfg.Server.ReadTimeoutMs < 0 || cfg.Server.WriteTimeoutMs < 0 || cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, "server timeouts must not be negative")
	}
	if _, err := cfg.Log.SlogLevel(); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.Engine.QueueDepth < 1 {
		errs = append(errs, fmt.Sprintf("engine.queue_depth must be at least 1, got %d", cfg.Engine.QueueDepth))
	}
	if cfg.Engine.CommandTimeoutMs < 1 {
		errs = append(errs, fmt.Sprintf("engine.command_timeout_ms must be at least 1, got %d", cfg.Engine.CommandTimeoutMs))
	}
	if cfg.Engine.TickIntervalMs < 0 {
		errs = append(errs, fmt.Sprintf("engine.tick_interval_ms must not be negative, got %d", cfg.Engine.TickIntervalMs))
	}
	if cfg.Graph.Name == "" {
		errs = append(errs, "graph.name is required")
	}
	if (cfg.Document.Autoload || cfg.Document.Watch) && cfg.Document.Path == "" {
		errs = append(errs, "document.path is required when autoload or watch is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
