package session

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	network "github.com/lk2023060901/echo-garden-go/internal/network"
	"github.com/lk2023060901/echo-garden-go/pkg/log"
	"github.com/lk2023060901/echo-garden-go/pkg/metrics"
	"github.com/lk2023060901/echo-garden-go/pkg/util/merr"
)

// Releaser 归还会话持有的准入槽位。
type Releaser interface {
	Release()
}

// Config 描述单个回显会话的参数。
//
// 说明：
//   - BufferSize 为单次读取的最大字节数，超出部分在下一轮读取中回显，不做拼包；
//   - IdleTimeout 为两次读取之间允许的最长空闲时间，为 0 表示不设置读 deadline；
//   - 写操作不设置 deadline。
type Config struct {
	BufferSize      int
	IdleTimeout     time.Duration
	TimeoutLogLevel zapcore.Level
}

// EchoSession 是 Session 的回显实现，独占一条已接受的 TCP 连接。
//
// 生命周期：Active -> (读/写循环) -> Closed。
// 无论循环因 EOF、I/O 错误、空闲超时还是 panic 退出，Serve 都会关闭连接、
// 归还准入槽位并输出 "disconnected" 事件，且各只执行一次。
type EchoSession struct {
	id uint64

	ctx    context.Context
	cancel context.CancelFunc

	conn net.Conn
	cfg  Config

	remoteAddr net.Addr
	localAddr  net.Addr

	releaser    Releaser
	releaseOnce sync.Once

	logger *log.MLogger
	state  atomic.Int32

	closeOnce sync.Once
}

// 确保 EchoSession 实现了 Session 接口。
var _ Session = (*EchoSession)(nil)

// NewEchoSession 创建一个回显会话。
//
// 参数：
//   - parent  ：会话所属的上层上下文；若为 nil，则使用 context.Background()；
//   - id      ：会话 ID；
//   - conn    ：已接受的连接，所有权转移给会话；
//   - releaser：准入槽位归还方，可为 nil；
//   - logger  ：会话日志，可为 nil（使用全局 Logger）。
func NewEchoSession(parent context.Context, id uint64, conn net.Conn, cfg Config, releaser Releaser, logger *log.MLogger) *EchoSession {
	if parent == nil {
		parent = context.Background()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 128
	}
	if logger == nil {
		logger = log.With()
	}
	ctx, cancel := context.WithCancel(parent)

	s := &EchoSession{
		id:         id,
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		cfg:        cfg,
		remoteAddr: conn.RemoteAddr(),
		localAddr:  conn.LocalAddr(),
		releaser:   releaser,
	}
	s.logger = logger.With(log.FieldSession(id), log.FieldRemote(s.remoteAddr), log.FieldTransport(network.TransportTCP))
	s.state.Store(int32(StateActive))
	return s
}

// ID 实现 Session.ID。
func (s *EchoSession) ID() uint64 {
	return s.id
}

// Context 实现 Session.Context。
func (s *EchoSession) Context() context.Context {
	return s.ctx
}

// RemoteAddr 实现 Session.RemoteAddr。
func (s *EchoSession) RemoteAddr() net.Addr {
	return s.remoteAddr
}

// LocalAddr 实现 Session.LocalAddr。
func (s *EchoSession) LocalAddr() net.Addr {
	return s.localAddr
}

// State 实现 Session.State。
func (s *EchoSession) State() State {
	return State(s.state.Load())
}

// Close 实现 Session.Close。
func (s *EchoSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// 先取消上下文，再关闭连接。
		s.cancel()
		err = s.conn.Close()
	})
	return err
}

// Serve 在当前协程中执行读-回显-记录循环，直到对端关闭、I/O 出错或空闲超时。
func (s *EchoSession) Serve() {
	metrics.TCPSessionsActive.Inc()
	s.logger.Info("establish a connection")

	// 未能确定原因时（例如 panic）按 error 计。
	reason := metrics.ClosedByError
	var cause error
	defer func() {
		s.finish(reason, cause)
	}()

	buf := make([]byte, s.cfg.BufferSize)
	for {
		if s.cfg.IdleTimeout > 0 {
			if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
				cause = merr.WrapErrSessionIO(s.id, err, string(network.StageRecv))
				return
			}
		}

		n, err := s.conn.Read(buf)
		if n > 0 {
			if werr := s.echo(buf[:n]); werr != nil {
				cause = werr
				return
			}
		}
		if err != nil {
			switch {
			case network.IsClosed(err):
				reason = metrics.ClosedByEOF
			case network.IsTimeout(err):
				reason = metrics.ClosedByTimeout
				cause = merr.WrapErrSessionTimeout(s.id, s.cfg.IdleTimeout)
				s.logger.Log(s.cfg.TimeoutLogLevel, "connection timeout", zap.Duration("idle", s.cfg.IdleTimeout))
			default:
				cause = merr.WrapErrSessionIO(s.id, err, string(network.StageRecv))
			}
			return
		}
		if n == 0 {
			reason = metrics.ClosedByEOF
			return
		}
	}
}

// echo 将 p 原样写回连接，并以文本形式记录本次回显。
func (s *EchoSession) echo(p []byte) error {
	written, err := s.conn.Write(p)
	if err != nil {
		return merr.WrapErrSessionIO(s.id, err, string(network.StageSend))
	}
	if written == 0 {
		return merr.WrapErrSessionIO(s.id, network.ErrShortWrite, string(network.StageSend))
	}
	metrics.ObserveEcho(metrics.TransportTCP, written)
	s.logger.Info("echo", zap.String("text", network.DecodeText(p)))
	return nil
}

// finish 负责会话的收尾：关闭连接、归还槽位、更新指标并输出 "disconnected"。
func (s *EchoSession) finish(reason string, cause error) {
	_ = s.Close()
	s.state.Store(int32(StateClosed))
	s.release()
	metrics.TCPSessionsActive.Dec()
	metrics.TCPSessionsClosedTotal.WithLabelValues(reason).Inc()

	fields := []zap.Field{zap.String("reason", reason)}
	if cause != nil && reason == metrics.ClosedByError {
		fields = append(fields, zap.Error(cause))
	}
	s.logger.Info("disconnected", fields...)
}

func (s *EchoSession) release() {
	s.releaseOnce.Do(func() {
		if s.releaser != nil {
			s.releaser.Release()
		}
	})
}
