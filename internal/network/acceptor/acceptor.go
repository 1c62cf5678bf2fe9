package acceptor

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/echo-garden-go/internal/network/session"
)

// Config 描述 TCP 接入层的配置。
//
// 说明：
//   - ConnectLimit 为同时在线的会话上限，同时决定会话协程池的容量；
//   - AdmissionBackoff 为并发已满时接入循环的暂停时长，不是排队；
//   - BufferSize/IdleTimeout/TimeoutLogLevel 传给每个 EchoSession；
//     IdleTimeout 为 0 表示不超时，TimeoutLogLevel 零值为 info，二者都不做缺省替换。
type Config struct {
	ConnectLimit     int
	AdmissionBackoff time.Duration

	BufferSize      int
	IdleTimeout     time.Duration
	TimeoutLogLevel zapcore.Level
}

// defaultConfig 只覆盖零值无意义的字段。
func defaultConfig() Config {
	return Config{
		ConnectLimit:     8,
		AdmissionBackoff: time.Second,
		BufferSize:       128,
	}
}

func (c Config) withDefaults() Config {
	def := defaultConfig()
	if c.ConnectLimit < 1 {
		c.ConnectLimit = def.ConnectLimit
	}
	if c.AdmissionBackoff <= 0 {
		c.AdmissionBackoff = def.AdmissionBackoff
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	return c
}

func (c Config) sessionConfig() session.Config {
	return session.Config{
		BufferSize:      c.BufferSize,
		IdleTimeout:     c.IdleTimeout,
		TimeoutLogLevel: c.TimeoutLogLevel,
	}
}

// Acceptor 抽象了服务器侧的 TCP 接入层。
//
// 职责：
//   - 在已绑定的 listener 上接受连接，并通过准入控制决定是否为其创建会话；
//   - 被拒绝的连接立即关闭，接入循环暂停一个退避间隔；
//   - 维护当前活跃会话列表，停机时强制关闭。
type Acceptor interface {
	// Serve 运行接入循环，阻塞直至 ctx 取消、Close 被调用或 listener 出现致命错误。
	// 因停机退出时返回 nil。
	Serve(ctx context.Context) error

	// Close 关闭 listener 以及所有活跃会话，不等待会话退出。
	Close() error

	// Addr 返回实际绑定的地址。
	Addr() net.Addr

	// Sessions 返回活跃会话索引。
	Sessions() session.SessionManager
}
