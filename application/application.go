package application

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/lk2023060901/echo-garden-go/internal/config"
	"github.com/lk2023060901/echo-garden-go/internal/server"
	zlog "github.com/lk2023060901/echo-garden-go/pkg/log"
	"github.com/lk2023060901/echo-garden-go/pkg/metrics"
	"github.com/lk2023060901/echo-garden-go/pkg/util/merr"
	zviper "github.com/lk2023060901/echo-garden-go/pkg/util/viper"
)

const (
	defaultConfigPath = "./echod.yaml"
	configPathEnv     = config.EnvPrefix + "_CONFIG_FILE_PATH"

	// serverLoggerName is the key under "logging" that overrides the server logger.
	serverLoggerName = "server"
)

// Version is the build version, overridden with -ldflags "-X ...application.Version=...".
var Version = "0.1.0"

// Application is the main runtime container for the echo service.
// It owns configuration, logging and the server it runs.
type Application struct {
	args   []string
	stdout io.Writer

	registerer prometheus.Registerer

	cfg     *zviper.Config
	conf    *config.Config
	loggers map[string]*zlog.MLogger
	srv     atomic.Pointer[server.Server]
}

// Option customizes an Application.
type Option func(a *Application)

// WithArgs replaces os.Args[1:] as the command-line arguments.
func WithArgs(args []string) Option {
	return func(a *Application) {
		a.args = args
	}
}

// WithStdout redirects --version output.
func WithStdout(w io.Writer) Option {
	return func(a *Application) {
		a.stdout = w
	}
}

// WithRegisterer sets the Prometheus registerer metrics are registered to.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(a *Application) {
		a.registerer = r
	}
}

// New creates a new Application instance.
func New(opts ...Option) *Application {
	a := &Application{
		args:       os.Args[1:],
		stdout:     os.Stdout,
		registerer: prometheus.DefaultRegisterer,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run is the entry of the echo service. It blocks until the server stops.
func (a *Application) Run() error {
	return a.RunContext(context.Background())
}

// RunContext is Run with a caller-controlled context; cancelling ctx stops the server.
//
// The configuration file is resolved using the following priority:
//  1. Default: ./echod.yaml, if present
//  2. Env: ECHOD_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
//
// Explicitly named files must exist.
func (a *Application) RunContext(ctx context.Context) error {
	opts, err := parseArgs(a.args)
	if err != nil {
		return err
	}
	if opts.version {
		return a.printVersion()
	}

	if err := a.loadConfig(opts.configPath); err != nil {
		return err
	}
	if err := a.initLogging(); err != nil {
		return err
	}
	metrics.Register(a.registerer)

	srv := server.New(a.conf.Server)
	srv.SetLogger(a.Logger(serverLoggerName))
	a.srv.Store(srv)
	defer zlog.Sync()
	return srv.Run(ctx)
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *config.Config {
	return a.conf
}

// Server returns the server once RunContext has created it.
func (a *Application) Server() *server.Server {
	return a.srv.Load()
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &zlog.MLogger{Logger: zlog.L()}
}

type cliOptions struct {
	configPath string
	version    bool
}

func parseArgs(args []string) (cliOptions, error) {
	var opts cliOptions
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--version" || arg == "-v":
			opts.version = true
		case arg == "--config":
			if i+1 >= len(args) {
				return opts, merr.WrapErrParameterMissing("--config", "missing value after --config")
			}
			opts.configPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			if val := strings.TrimPrefix(arg, "--config="); val != "" {
				opts.configPath = val
			}
		}
	}
	return opts, nil
}

func (a *Application) printVersion() error {
	v, err := semver.ParseTolerant(Version)
	if err != nil {
		return merr.WrapErrServiceInternal(fmt.Sprintf("invalid build version %q: %s", Version, err.Error()))
	}
	_, err = fmt.Fprintf(a.stdout, "echod v%s\n", v.String())
	return err
}

// loadConfig resolves the config file path and loads it via the viper wrapper.
func (a *Application) loadConfig(cliPath string) error {
	v := zviper.New()
	if err := config.SetDefaults(v); err != nil {
		return err
	}

	path, required := resolveConfigPath(cliPath)
	if path != "" {
		if _, err := os.Stat(path); err == nil || required {
			if err := v.LoadFile(path); err != nil {
				return errors.Wrapf(err, "failed to load config file %q", path)
			}
		}
	}

	conf, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = v
	a.conf = conf
	return nil
}

// resolveConfigPath reports the config file to load and whether it must exist.
func resolveConfigPath(cliPath string) (string, bool) {
	if cliPath != "" {
		return cliPath, true
	}
	if envPath := strings.TrimSpace(os.Getenv(configPathEnv)); envPath != "" {
		return envPath, true
	}
	return defaultConfigPath, false
}

// initLogging initializes the global logger from the "log" section and
// named loggers from the optional "logging" section.
func (a *Application) initLogging() error {
	logCfg := a.conf.Log
	logger, props, err := zlog.InitLogger(&logCfg)
	if err != nil {
		return errors.Wrap(err, "init global logger")
	}
	zlog.ReplaceGlobals(logger, props)
	return a.initModuleLoggersFromConfig()
}

// initModuleLoggersFromConfig creates named loggers from the "logging" key.
//
// Example:
//
//	logging:
//	  server:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: echod-server.log
func (a *Application) initModuleLoggersFromConfig() error {
	if a.cfg == nil {
		return nil
	}

	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger}
	}
	return nil
}
