package log

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitLoggerWithFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Level:  "info",
		Format: FormatJSON,
		File: FileLogConfig{
			RootPath: dir,
			Filename: "echod.log",
		},
	}
	logger, props, err := InitLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, props)

	logger.Debug("should be filtered")
	logger.Info("server start", zap.String("addr", "0.0.0.0:7"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "echod.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"server start"`)
	assert.Contains(t, string(data), `"addr":"0.0.0.0:7"`)
	assert.NotContains(t, string(data), "should be filtered")
	assert.Equal(t, zapcore.InfoLevel, props.Level.Level())
}

func TestInitLoggerRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	_, _, err := InitLogger(&Config{Level: "info", File: FileLogConfig{Filename: dir}})
	assert.Error(t, err)
}

func TestInitLoggerBadInput(t *testing.T) {
	_, _, err := InitLogger(&Config{Level: "loud"})
	assert.Error(t, err)

	_, _, err = InitLogger(&Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestInitLoggerTraceIsDebug(t *testing.T) {
	_, props, err := InitLogger(&Config{Level: "trace"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, props.Level.Level())
}

func TestInitTestLogger(t *testing.T) {
	logger, _, err := InitTestLogger(t, &Config{Level: "debug"})
	require.NoError(t, err)
	logger.Info("captured by t.Logf")
}

func TestCtxLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ContextWithLogger(context.Background(), &MLogger{Logger: zap.New(core)})
	ctx = WithModule(ctx, "server")
	ctx = WithFields(ctx, FieldTransport("tcp"))

	Ctx(ctx).Info("echo", FieldRemote(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7}))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "server", fields[FieldNameModule])
	assert.Equal(t, "tcp", fields[FieldNameTransport])
	assert.Equal(t, "127.0.0.1:7", fields[FieldNameRemote])

	assert.NotNil(t, Ctx(context.Background()))
	assert.Equal(t, "", FieldRemote(nil).String)
}

func TestMLoggerLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &MLogger{Logger: zap.New(core)}

	l.Log(zapcore.WarnLevel, "connection timeout", FieldSession(3))
	l.Log(zapcore.DebugLevel, "dropped")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, uint64(3), entry.ContextMap()[FieldNameSession])
}

func TestRatedLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := (&MLogger{Logger: zap.New(core)}).WithRateGroup("test.rated", 1, 1)

	assert.True(t, l.RatedWarn(1, "connection rejected"))
	assert.False(t, l.RatedWarn(1, "connection rejected"))
	assert.Equal(t, 1, logs.FilterMessage("connection rejected").Len())

	child := l.With(FieldComponent("acceptor"))
	assert.False(t, child.RatedInfo(1, "inherits limiter"))

	// unbound loggers fall back to the global limiter, nop by default.
	plain := &MLogger{Logger: zap.New(core)}
	assert.True(t, plain.RatedDebug(100, "never dropped"))
}

func TestConfigureRateLimiter(t *testing.T) {
	defer ConfigureRateLimiter(0, 0)

	ConfigureRateLimiter(1, 1)
	assert.True(t, R().CheckCredit(1))
	assert.False(t, R().CheckCredit(1))

	ConfigureRateLimiter(0, 0)
	assert.True(t, R().CheckCredit(1000))
}

func TestBinder(t *testing.T) {
	var b Binder
	assert.NotNil(t, b.Logger())

	core, logs := observer.New(zapcore.InfoLevel)
	b.SetLogger(&MLogger{Logger: zap.New(core)})
	b.Logger().Info("bound")
	assert.Equal(t, 1, logs.Len())

	b.Tag(FieldComponent("acceptor"))
	b.Logger().Info("tagged")
	assert.Equal(t, "acceptor", logs.All()[1].ContextMap()[FieldNameComponent])

	b.SetLogger(nil)
	assert.NotNil(t, b.Logger())
}

func TestLeveledLoggersAtInfo(t *testing.T) {
	defer replaceLeveledLoggers(L())

	errOut := &zaptest.Buffer{}
	core, logs := observer.New(zapcore.InfoLevel)
	replaceLeveledLoggers(zap.New(core, zap.ErrorOutput(errOut)))
	// zap reports "invalid increase level" on the error output when asked to lower a level.
	assert.Empty(t, errOut.String())

	debugL, ok := _globalLevelLogger.Load(zapcore.DebugLevel)
	require.True(t, ok)
	debugL.(*zap.Logger).Info("kept")
	warnL, ok := _globalLevelLogger.Load(zapcore.WarnLevel)
	require.True(t, ok)
	warnL.(*zap.Logger).Info("dropped")
	warnL.(*zap.Logger).Warn("kept")

	assert.Equal(t, 2, logs.FilterMessage("kept").Len())
	assert.Zero(t, logs.FilterMessage("dropped").Len())
}

func TestLevel(t *testing.T) {
	old := GetLevel()
	defer SetLevel(old)

	SetLevel(zapcore.ErrorLevel)
	assert.Equal(t, zapcore.ErrorLevel, GetLevel())
	assert.Equal(t, zapcore.ErrorLevel, Level().Level())
}
