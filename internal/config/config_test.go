package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/nodegraph/internal/config"
)

const sample = `
version: "1"
server:
  addr: ":9090"
log:
  level: debug
engine:
  queue_depth: 16
  tick_interval_ms: 50
graph:
  name: calculator
  auto_execute: false
document:
  path: graphs/calculator.json
  autoload: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewLoader_AppliesDefaults(t *testing.T) {
	l, err := config.NewLoader(writeConfig(t, sample), nil)
	require.NoError(t, err)
	cfg := l.Config()

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout())
	assert.Equal(t, 16, cfg.Engine.QueueDepth)
	assert.Equal(t, 5*time.Second, cfg.Engine.CommandTimeout())
	assert.Equal(t, 50*time.Millisecond, cfg.Engine.TickInterval())
	assert.False(t, cfg.Graph.AutoExecuteEnabled())
	assert.True(t, cfg.Document.Autoload)
	require.NoError(t, config.Validate(cfg))
}

func TestNewLoader_Errors(t *testing.T) {
	_, err := config.NewLoader(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	_, err = config.NewLoader(writeConfig(t, "engine: [1, 2"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"no version", func(c *config.Config) { c.Version = "" }, "version is required"},
		{"bad level", func(c *config.Config) { c.Log.Level = "loud" }, "log level"},
		{"queue", func(c *config.Config) { c.Engine.QueueDepth = -1 }, "queue_depth"},
		{"tick", func(c *config.Config) { c.Engine.TickIntervalMs = -5 }, "tick_interval_ms"},
		{"watch without path", func(c *config.Config) { c.Document.Watch = true }, "document.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Version: "1"}
			config.ApplyDefaults(cfg)
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &config.Config{Version: "1", Log: config.LogConf{Level: "info"}}
	err := config.Validate(cfg)
	require.Error(t, err)
	for _, want := range []string{"server.addr", "queue_depth", "command_timeout_ms", "graph.name"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestReload(t *testing.T) {
	path := writeConfig(t, sample)
	l, err := config.NewLoader(path, nil)
	require.NoError(t, err)

	var seen []*config.Config
	l.OnChange(func(c *config.Config) { seen = append(seen, c) })

	require.NoError(t, os.WriteFile(path, []byte("version: \"1\"\nlog:\n  level: nope\n"), 0o644))
	_, err = l.Reload()
	assert.Error(t, err)
	assert.Equal(t, "debug", l.Config().Log.Level, "invalid config keeps the old one")
	assert.Empty(t, seen)

	require.NoError(t, os.WriteFile(path, []byte("version: \"2\"\n"), 0o644))
	cfg, err := l.Reload()
	require.NoError(t, err)
	assert.Equal(t, "2", cfg.Version)
	assert.Equal(t, "info", l.Config().Log.Level)
	require.Len(t, seen, 1)
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, sample)
	l, err := config.NewLoader(path, nil)
	require.NoError(t, err)

	changed := make(chan *config.Config, 4)
	l.OnChange(func(c *config.Config) { changed <- c })
	stop, err := l.Watch()
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("version: \"3\"\nengine:\n  tick_interval_ms: 20\n"), 0o644))

	select {
	case c := <-changed:
		assert.Equal(t, "3", c.Version)
		assert.Equal(t, 20, c.Engine.TickIntervalMs)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
}
