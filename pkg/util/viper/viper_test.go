package viper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverSection struct {
	Address      string `mapstructure:"address"`
	ConnectLimit int    `mapstructure:"connect_limit"`
}

type rootSection struct {
	Server serverSection `mapstructure:"server"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "echod.yaml", "server:\n  address: 127.0.0.1:7\n  connect_limit: 4\n")

	c := New()
	require.NoError(t, c.LoadFile(path))

	var root rootSection
	require.NoError(t, c.Unmarshal(&root))
	assert.Equal(t, "127.0.0.1:7", root.Server.Address)
	assert.Equal(t, 4, root.Server.ConnectLimit)

	var server serverSection
	require.NoError(t, c.UnmarshalKey("server", &server))
	assert.Equal(t, 4, server.ConnectLimit)
	assert.True(t, c.IsSet("server.address"))
	assert.Equal(t, "127.0.0.1:7", c.GetString("server.address"))
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "echod.json", `{"server":{"connect_limit":2}}`)

	c := New()
	require.NoError(t, c.LoadFile(path))
	var root rootSection
	require.NoError(t, c.Unmarshal(&root))
	assert.Equal(t, 2, root.Server.ConnectLimit)
}

func TestLoadMissingFile(t *testing.T) {
	c := New()
	assert.Error(t, c.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestDefaultsAndEnv(t *testing.T) {
	t.Setenv("ECHOTEST_SERVER_ADDRESS", "0.0.0.0:7007")
	t.Setenv("ECHOTEST_LIMIT", "16")

	c := New()
	c.SetDefault("server.address", "0.0.0.0:7")
	c.SetDefault("server.connect_limit", 8)
	c.BindEnv("ECHOTEST")
	require.NoError(t, c.BindEnvKey("server.connect_limit", "ECHOTEST_LIMIT"))

	var root rootSection
	require.NoError(t, c.Unmarshal(&root))
	assert.Equal(t, "0.0.0.0:7007", root.Server.Address)
	assert.Equal(t, 16, root.Server.ConnectLimit)
}

func TestZeroValue(t *testing.T) {
	var c Config
	assert.False(t, c.IsSet("server"))
	assert.Equal(t, "", c.GetString("server"))
	assert.NoError(t, c.Unmarshal(&rootSection{}))
	assert.NoError(t, c.UnmarshalKey("server", &serverSection{}))
}
