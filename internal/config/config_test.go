package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "rmo/survey/+/observation", cfg.MQTT.Topic)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rmohub.yaml")
	data := `
listen: ":9090"
network_path: /srv/network.geojson
mqtt:
  enabled: true
  broker: tcp://broker.example:1883
log:
  level: debug
  json: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "/srv/network.geojson", cfg.NetworkPath)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://broker.example:1883", cfg.MQTT.Broker)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	// Untouched fields keep their defaults.
	assert.Equal(t, "data/rmohub.db", cfg.DatabasePath)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RMOHUB_LISTEN", ":7070")
	t.Setenv("RMOHUB_MQTT_PASSWORD", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, "s3cret", cfg.MQTT.Password)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Enabled = true
	assert.Error(t, cfg.Validate(), "enabled mqtt without a broker")

	cfg = Default()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Listen = ""
	assert.Error(t, cfg.Validate())
}
