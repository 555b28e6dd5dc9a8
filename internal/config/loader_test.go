package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8081
  mode: debug
log:
  level: debug
  format: console
postprocess:
  adjacency: touching
  thresholds_file: thresholds.yaml
rules:
  recheck_overlaps: true
reconcile:
  workers: 4
  policy: ensemble-2
  sources:
    model_4: preds/model_4.json
    model_5: preds/model_5.json
  output: out/ensemble_2.json
storage:
  backend: file
  base_dir: /data
kafka:
  brokers: ["k1:9092", "k2:9092"]
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "touching", cfg.Postprocess.Adjacency)
	assert.Equal(t, DefaultEndShift, cfg.Postprocess.EndShift)
	assert.True(t, cfg.Rules.Enabled)
	assert.True(t, cfg.Rules.RecheckOverlaps)
	assert.Equal(t, DefaultRuleWindow, cfg.Rules.Window)
	assert.Equal(t, 4, cfg.Reconcile.Workers)
	assert.Equal(t, "preds/model_5.json", cfg.Reconcile.Sources["model_5"])
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_ExplicitEndShift(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, "postprocess:\n  end_shift: -1\nrules:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Postprocess.EndShift)
	assert.False(t, cfg.Rules.Enabled)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "server: ["))
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "server:\n  port: 70000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoad_EnvOverride(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	t.Setenv("NERRECON_SERVER_PORT", "9999")
	t.Setenv("NERRECON_REDIS_ADDR", "cache:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NERRECON_STORAGE_BASE_DIR", "/srv/sets")
	t.Setenv("NERRECON_POSTPROCESS_END_SHIFT", "-1")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/srv/sets", cfg.Storage.BaseDir)
	assert.Equal(t, -1, cfg.Postprocess.EndShift)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	changed := make(chan *Config, 1)
	Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))

	select {
	case c := <-changed:
		assert.Equal(t, "warn", c.Log.Level)
	case <-time.After(5 * time.Second):
		t.Skip("no fsnotify event delivered on this platform")
	}
}

//Personal.AI order the ending
