package application

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/echo-garden-go/internal/server"
	"github.com/lk2023060901/echo-garden-go/pkg/util/merr"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "echod.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseArgs(t *testing.T) {
	opts, err := parseArgs([]string{"--config", "a.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "a.yaml", opts.configPath)
	assert.False(t, opts.version)

	opts, err = parseArgs([]string{"--config=b.yaml", "--version"})
	require.NoError(t, err)
	assert.Equal(t, "b.yaml", opts.configPath)
	assert.True(t, opts.version)

	_, err = parseArgs([]string{"--config"})
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	app := New(WithArgs([]string{"--version"}), WithStdout(&out))
	require.NoError(t, app.Run())
	assert.Equal(t, "echod v"+Version+"\n", out.String())
	assert.Nil(t, app.Server())

	old := Version
	defer func() { Version = old }()
	Version = "not-a-version"
	err := New(WithArgs([]string{"-v"}), WithStdout(&out)).Run()
	assert.ErrorIs(t, err, merr.ErrServiceInternal)
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(configPathEnv, "")
	path, required := resolveConfigPath("")
	assert.Equal(t, defaultConfigPath, path)
	assert.False(t, required)

	t.Setenv(configPathEnv, "/etc/echod.yaml")
	path, required = resolveConfigPath("")
	assert.Equal(t, "/etc/echod.yaml", path)
	assert.True(t, required)

	path, required = resolveConfigPath("cli.yaml")
	assert.Equal(t, "cli.yaml", path)
	assert.True(t, required)
}

func TestMissingExplicitConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	err := New(WithArgs([]string{"--config", missing})).Run()
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	path := writeConfig(t, "server:\n  connect_limit: 0\n")
	err := New(WithArgs([]string{"--config=" + path})).Run()
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}

func TestRunUntilCancelled(t *testing.T) {
	logDir := t.TempDir()
	path := writeConfig(t, `
server:
  address: 127.0.0.1:0
  connect_limit: 4
  idle_timeout: none
log:
  level: debug
  stdout: false
logging:
  server:
    level: info
    file:
      rootpath: `+logDir+`
      filename: server.log
`)
	app := New(WithArgs([]string{"--config", path}), WithRegisterer(prometheus.NewRegistry()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.RunContext(ctx)
	}()

	require.Eventually(t, func() bool {
		srv := app.Server()
		return srv != nil && srv.Phase() == server.PhaseRunning
	}, 5*time.Second, 10*time.Millisecond)

	conf := app.Config()
	assert.Equal(t, 4, conf.Server.ConnectLimit)
	assert.Zero(t, conf.Server.IdleTimeout)
	assert.NotNil(t, app.Logger("server"))
	assert.NotNil(t, app.Logger("unknown"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not stop")
	}

	data, err := os.ReadFile(filepath.Join(logDir, "server.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "server start")
	assert.Contains(t, string(data), "server stop")
}
