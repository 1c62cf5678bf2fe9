package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/echo-garden-go/pkg/util/merr"
	zviper "github.com/lk2023060901/echo-garden-go/pkg/util/viper"
)

func load(t *testing.T, content string) (*Config, error) {
	t.Helper()
	v := zviper.New()
	require.NoError(t, SetDefaults(v))
	if content != "" {
		path := filepath.Join(t.TempDir(), "echod.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		require.NoError(t, v.LoadFile(path))
	}
	return Load(v)
}

func TestDefaults(t *testing.T) {
	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg.Server)
	assert.Equal(t, "0.0.0.0:7", cfg.Server.Address)
	assert.Equal(t, 8, cfg.Server.ConnectLimit)
	assert.Equal(t, 128, cfg.Server.BufferSize)
	assert.Equal(t, 30*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, time.Second, cfg.Server.AdmissionBackoff)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Stdout)
}

func TestLoadFile(t *testing.T) {
	cfg, err := load(t, `
server:
  address: 127.0.0.1:7007
  connect_limit: 2
  buffer_size: 64
  idle_timeout: none
  admission_backoff: 250ms
  timeout_log_level: info
log:
  level: debug
  format: json
  stdout: false
  file:
    rootpath: /tmp
    filename: echod.log
`)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7007", cfg.Server.Address)
	assert.Equal(t, 2, cfg.Server.ConnectLimit)
	assert.Equal(t, 64, cfg.Server.BufferSize)
	assert.Equal(t, time.Duration(0), cfg.Server.IdleTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.AdmissionBackoff)
	assert.Equal(t, zapcore.InfoLevel, cfg.Server.TimeoutLogLevel)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Log.Stdout)
	assert.Equal(t, "echod.log", cfg.Log.File.Filename)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ECHOD_CONNECT_LIMIT", "32")
	t.Setenv("ECHOD_IDLE_TIMEOUT", "5s")
	t.Setenv("ECHOD_ADDRESS", "127.0.0.1:0")

	cfg, err := load(t, "server:\n  connect_limit: 4\n")
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Server.ConnectLimit)
	assert.Equal(t, 5*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, "127.0.0.1:0", cfg.Server.Address)
}

func TestInvalid(t *testing.T) {
	cases := map[string]string{
		"limit":   "server:\n  connect_limit: 0\n",
		"buffer":  "server:\n  buffer_size: 0\n",
		"huge":    "server:\n  buffer_size: 1048576\n",
		"idle":    "server:\n  idle_timeout: soon\n",
		"backoff": "server:\n  admission_backoff: 0s\n",
		"level":   "server:\n  timeout_log_level: error\n",
		"badlvl":  "server:\n  timeout_log_level: loud\n",
		"address": "server:\n  address: \" \"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(t, content)
			assert.Error(t, err)
		})
	}

	_, err := load(t, "server:\n  connect_limit: 0\n")
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
	_, err = load(t, "server:\n  address: \"\"\n")
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}

func TestParseIdleTimeout(t *testing.T) {
	for _, s := range []string{"", "none", "NONE", "0", " none "} {
		d, err := ParseIdleTimeout(s)
		require.NoError(t, err, s)
		assert.Zero(t, d, s)
	}

	d, err := ParseIdleTimeout("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseIdleTimeout("-1s")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.IdleTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}
