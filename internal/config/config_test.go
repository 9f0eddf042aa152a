package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relite.yaml")
	content := `
log:
  level: debug
hub:
  addr: ":9000"
devtool:
  transport: redis
  mode: one-way
  connect_timeout: 250ms
redis:
  db: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "unset keys keep their default")
	assert.Equal(t, ":9000", cfg.Hub.Addr)
	assert.Equal(t, "redis", cfg.DevTool.Transport)
	assert.Equal(t, "one-way", cfg.DevTool.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.DevTool.ConnectTimeout.Std())
	assert.Equal(t, 50, cfg.DevTool.MaxAge)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relite.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"devtool":{"connect_timeout":"2s","max_age":10}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.DevTool.ConnectTimeout.Std())
	assert.Equal(t, 10, cfg.DevTool.MaxAge)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad duration":  "devtool:\n  connect_timeout: soon\n",
		"bad mode":      "devtool:\n  mode: sideways\n",
		"bad transport": "devtool:\n  transport: carrier-pigeon\n",
		"negative age":  "devtool:\n  max_age: -1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "relite.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
