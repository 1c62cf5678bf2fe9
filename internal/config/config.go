package config

import (
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	zlog "github.com/lk2023060901/echo-garden-go/pkg/log"
	"github.com/lk2023060901/echo-garden-go/pkg/util/merr"
	zviper "github.com/lk2023060901/echo-garden-go/pkg/util/viper"
)

const (
	// DefaultAddress 为 TCP 与 UDP 共用的监听地址（RFC 862 约定的 7 号端口）。
	DefaultAddress = "0.0.0.0:7"
	// DefaultConnectLimit 为同时在线的 TCP 会话上限。
	DefaultConnectLimit = 8
	// DefaultBufferSize 为单次读取的最大字节数。
	DefaultBufferSize = 128
	// DefaultIdleTimeout 为单个会话两次读取之间允许的最长空闲时间。
	DefaultIdleTimeout = 30 * time.Second
	// DefaultAdmissionBackoff 为并发已满时接入循环的暂停时长。
	DefaultAdmissionBackoff = time.Second

	// IdleTimeoutNone 表示关闭空闲超时。
	IdleTimeoutNone = "none"

	maxBufferSize = 64 * 1024

	EnvPrefix = "ECHOD"
)

// ServerConfig 描述回显服务核心的启动参数。
//
// 说明：
//   - IdleTimeout 为 0 表示不设置读 deadline；
//   - TimeoutLogLevel 控制 "connection timeout" 事件的日志级别（info 或 warn）。
type ServerConfig struct {
	Address          string
	ConnectLimit     int
	BufferSize       int
	IdleTimeout      time.Duration
	AdmissionBackoff time.Duration
	TimeoutLogLevel  zapcore.Level
}

// Default 返回与参考行为一致的缺省配置。
func Default() ServerConfig {
	return ServerConfig{
		Address:          DefaultAddress,
		ConnectLimit:     DefaultConnectLimit,
		BufferSize:       DefaultBufferSize,
		IdleTimeout:      DefaultIdleTimeout,
		AdmissionBackoff: DefaultAdmissionBackoff,
		TimeoutLogLevel:  zapcore.WarnLevel,
	}
}

// Validate 检查配置取值范围。
func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return merr.WrapErrParameterMissing("server.address")
	}
	if c.ConnectLimit < 1 {
		return merr.WrapErrParameterInvalidMsg("server.connect_limit must be >= 1, got %d", c.ConnectLimit)
	}
	if c.BufferSize < 1 || c.BufferSize > maxBufferSize {
		return merr.WrapErrParameterInvalidRange(1, maxBufferSize, c.BufferSize, "server.buffer_size")
	}
	if c.IdleTimeout < 0 {
		return merr.WrapErrParameterInvalidMsg("server.idle_timeout must not be negative, got %s", c.IdleTimeout)
	}
	if c.AdmissionBackoff <= 0 {
		return merr.WrapErrParameterInvalidMsg("server.admission_backoff must be positive, got %s", c.AdmissionBackoff)
	}
	if c.TimeoutLogLevel != zapcore.InfoLevel && c.TimeoutLogLevel != zapcore.WarnLevel {
		return merr.WrapErrParameterInvalid("info|warn", c.TimeoutLogLevel.String(), "server.timeout_log_level")
	}
	return nil
}

// rawServerConfig 为配置文件中 server 段的原始形式，时长字段保留字符串以支持 "none"。
type rawServerConfig struct {
	Address          string `mapstructure:"address"`
	ConnectLimit     int    `mapstructure:"connect_limit"`
	BufferSize       int    `mapstructure:"buffer_size"`
	IdleTimeout      string `mapstructure:"idle_timeout"`
	AdmissionBackoff string `mapstructure:"admission_backoff"`
	TimeoutLogLevel  string `mapstructure:"timeout_log_level"`
}

type rawConfig struct {
	Server rawServerConfig `mapstructure:"server"`
	Log    zlog.Config     `mapstructure:"log"`
}

// Config 为进程级配置：服务核心参数与日志参数。
type Config struct {
	Server ServerConfig
	Log    zlog.Config
}

// SetDefaults 将缺省值与环境变量绑定写入 v。
func SetDefaults(v *zviper.Config) error {
	def := Default()
	v.SetDefault("server.address", def.Address)
	v.SetDefault("server.connect_limit", def.ConnectLimit)
	v.SetDefault("server.buffer_size", def.BufferSize)
	v.SetDefault("server.idle_timeout", def.IdleTimeout.String())
	v.SetDefault("server.admission_backoff", def.AdmissionBackoff.String())
	v.SetDefault("server.timeout_log_level", def.TimeoutLogLevel.String())

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", zlog.FormatText)
	v.SetDefault("log.stdout", true)

	v.BindEnv(EnvPrefix)
	envs := map[string]string{
		"server.address":       EnvPrefix + "_ADDRESS",
		"server.connect_limit": EnvPrefix + "_CONNECT_LIMIT",
		"server.buffer_size":   EnvPrefix + "_BUFFER_SIZE",
		"server.idle_timeout":  EnvPrefix + "_IDLE_TIMEOUT",
		"log.level":            EnvPrefix + "_LOG_LEVEL",
		"log.format":           EnvPrefix + "_LOG_FORMAT",
		"log.stdout":           EnvPrefix + "_LOG_STDOUT",
		"log.file.rootpath":    EnvPrefix + "_LOG_FILE_DIR",
		"log.file.filename":    EnvPrefix + "_LOG_FILE",
	}
	for key, env := range envs {
		if err := v.BindEnvKey(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Load 从 v 中解析并校验完整配置，v 应已通过 SetDefaults 初始化。
func Load(v *zviper.Config) (*Config, error) {
	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("decode config: %s", err.Error())
	}

	idle, err := ParseIdleTimeout(raw.Server.IdleTimeout)
	if err != nil {
		return nil, err
	}
	backoff, err := time.ParseDuration(strings.TrimSpace(raw.Server.AdmissionBackoff))
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("server.admission_backoff %q: %s", raw.Server.AdmissionBackoff, err.Error())
	}
	level, err := zapcore.ParseLevel(raw.Server.TimeoutLogLevel)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("server.timeout_log_level %q: %s", raw.Server.TimeoutLogLevel, err.Error())
	}

	cfg := &Config{
		Server: ServerConfig{
			Address:          strings.TrimSpace(raw.Server.Address),
			ConnectLimit:     raw.Server.ConnectLimit,
			BufferSize:       raw.Server.BufferSize,
			IdleTimeout:      idle,
			AdmissionBackoff: backoff,
			TimeoutLogLevel:  level,
		},
		Log: raw.Log,
	}
	if err := cfg.Server.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseIdleTimeout 解析空闲超时配置：空串、"none"、"0" 均表示关闭超时。
func ParseIdleTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", IdleTimeoutNone, "0":
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, merr.WrapErrParameterInvalidMsg("server.idle_timeout %q: %s", s, err.Error())
	}
	if d < 0 {
		return 0, merr.WrapErrParameterInvalidMsg("server.idle_timeout must not be negative, got %s", s)
	}
	return d, nil
}
