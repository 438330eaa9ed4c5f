package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config is the top-level YAML structure of the editor service.
type Config struct {
	Version  string       `yaml:"version"`
	Server   ServerConf   `yaml:"server"`
	Log      LogConf      `yaml:"log"`
	Engine   EngineConf   `yaml:"engine"`
	Graph    GraphConf    `yaml:"graph"`
	Document DocumentConf `yaml:"document"`
}

// ServerConf holds the HTTP listener settings.
type ServerConf struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutMs   int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs  int    `yaml:"write_timeout_ms"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_ms"`
}

// LogConf selects the log level. It is applied again on hot reload.
type LogConf struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// EngineConf holds tunable command loop settings.
type EngineConf struct {
	QueueDepth       int `yaml:"queue_depth"`
	CommandTimeoutMs int `yaml:"command_timeout_ms"`
	TickIntervalMs   int `yaml:"tick_interval_ms"` // 0 = no ticks
}

// GraphConf describes the graph the service starts with.
type GraphConf struct {
	Name        string `yaml:"name"`
	AutoExecute *bool  `yaml:"auto_execute"` // nil = on
}

// DocumentConf points at the document the graph is saved to and loaded from.
type DocumentConf struct {
	Path     string `yaml:"path"`
	Autoload bool   `yaml:"autoload"`
	Watch    bool   `yaml:"watch"`
}

func (c EngineConf) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMs) * time.Millisecond
}

func (c EngineConf) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c ServerConf) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

func (c ServerConf) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

func (c ServerConf) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Millisecond
}

// AutoExecuteEnabled reports the auto_execute setting, defaulting to on.
func (c GraphConf) AutoExecuteEnabled() bool {
	return c.AutoExecute == nil || *c.AutoExecute
}

// SlogLevel parses the configured level.
func (c LogConf) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.Level, err)
	}
	return l, nil
}
