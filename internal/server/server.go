package server

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/echo-garden-go/internal/config"
	network "github.com/lk2023060901/echo-garden-go/internal/network"
	"github.com/lk2023060901/echo-garden-go/internal/network/acceptor"
	"github.com/lk2023060901/echo-garden-go/internal/network/responder"
	"github.com/lk2023060901/echo-garden-go/pkg/log"
	"github.com/lk2023060901/echo-garden-go/pkg/util/merr"
)

// Phase 表示服务进程的生命周期阶段。
type Phase int32

const (
	// PhaseStarting 表示正在绑定 socket。
	PhaseStarting Phase = iota
	// PhaseRunning 表示接入器与响应器均在运行。
	PhaseRunning
	// PhaseStopping 表示已触发停机（worker 退出或收到中断信号），后台工作被直接放弃。
	PhaseStopping
	// PhaseStopped 表示 Run 已返回。
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Server 并发运行 TCP 接入器与 UDP 响应器，并负责两者共同的生命周期。
//
// 以下任一事件先发生即触发停机：TCP worker 退出、UDP worker 退出、收到 SIGINT/SIGTERM
// 或上层 ctx 取消。停机是突然的：关闭 socket 与所有会话，不等待进行中的回显完成。
type Server struct {
	log.Binder

	cfg config.ServerConfig

	tcp *acceptor.TCPAcceptor
	udp *responder.UDPResponder

	phase atomic.Int32
	ran   atomic.Bool
}

// New 创建一个尚未绑定的 Server。
func New(cfg config.ServerConfig) *Server {
	return &Server{cfg: cfg}
}

// Bind 将 TCP 与 UDP socket 绑定到配置的地址。任一失败都是致命的，
// 已绑定的 socket 会被关闭，并返回 merr.ErrBindFailed。
func (s *Server) Bind() error {
	if s.tcp != nil {
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	logger := s.Logger()

	tcp, err := acceptor.NewTCPAcceptor(s.cfg.Address, acceptor.Config{
		ConnectLimit:     s.cfg.ConnectLimit,
		AdmissionBackoff: s.cfg.AdmissionBackoff,
		BufferSize:       s.cfg.BufferSize,
		IdleTimeout:      s.cfg.IdleTimeout,
		TimeoutLogLevel:  s.cfg.TimeoutLogLevel,
	})
	if err != nil {
		logger.Error("bind failed", log.FieldTransport(network.TransportTCP), zap.String("addr", s.cfg.Address), zap.Error(err))
		return err
	}
	udp, err := responder.NewUDPResponder(s.cfg.Address)
	if err != nil {
		_ = tcp.Close()
		logger.Error("bind failed", log.FieldTransport(network.TransportUDP), zap.String("addr", s.cfg.Address), zap.Error(err))
		return err
	}

	s.tcp = tcp
	s.udp = udp
	return nil
}

// Run 绑定（如尚未绑定）并运行服务，阻塞直至停机。
// 因信号或 ctx 取消停机时返回 nil；worker 失败时返回其错误。
func (s *Server) Run(ctx context.Context) error {
	if !s.ran.CompareAndSwap(false, true) {
		return merr.WrapErrServiceInternal("server already started")
	}
	defer s.phase.Store(int32(PhaseStopped))

	if err := s.Bind(); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stopSignal := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignal()

	ctx = log.ContextWithLogger(ctx, s.Logger())
	ctx, span := log.NewIntentContext(ctx, "echod", "serve")
	defer span.End()
	logger := log.Ctx(ctx)
	s.tcp.SetLogger(logger)
	s.udp.SetLogger(logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	context.AfterFunc(gctx, func() {
		s.phase.CompareAndSwap(int32(PhaseRunning), int32(PhaseStopping))
	})
	s.phase.Store(int32(PhaseRunning))
	logger.Info("server start",
		zap.Stringer("tcp", s.tcp.Addr()),
		zap.Stringer("udp", s.udp.Addr()),
		zap.Int("connect_limit", s.cfg.ConnectLimit),
		zap.Int("buffer_size", s.cfg.BufferSize),
		zap.Duration("idle_timeout", s.cfg.IdleTimeout))

	var tcpErr, udpErr error
	g.Go(func() error {
		defer cancel()
		tcpErr = s.tcp.Serve(gctx)
		return tcpErr
	})
	g.Go(func() error {
		defer cancel()
		udpErr = s.udp.Serve(gctx)
		return udpErr
	})
	_ = g.Wait()

	s.phase.Store(int32(PhaseStopping))
	s.close()

	err := merr.Combine(tcpErr, udpErr)
	reason := "worker exited"
	if ctx.Err() != nil {
		reason = "interrupted"
	}
	fields := []zap.Field{zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
		logger.Error("server stop", fields...)
		return err
	}
	logger.Info("server stop", fields...)
	return nil
}

func (s *Server) close() {
	if s.tcp != nil {
		_ = s.tcp.Close()
	}
	if s.udp != nil {
		_ = s.udp.Close()
	}
}

// Close 关闭已绑定的 socket。用于 Bind 成功但未调用 Run 的场景；Run 退出时会自行关闭。
func (s *Server) Close() error {
	if s.tcp == nil {
		return nil
	}
	return errors.CombineErrors(s.tcp.Close(), s.udp.Close())
}

// Phase 返回当前生命周期阶段。
func (s *Server) Phase() Phase {
	return Phase(s.phase.Load())
}

// TCPAddr 返回 TCP 监听地址，未绑定时返回 nil。
func (s *Server) TCPAddr() net.Addr {
	if s.tcp == nil {
		return nil
	}
	return s.tcp.Addr()
}

// UDPAddr 返回 UDP 绑定地址，未绑定时返回 nil。
func (s *Server) UDPAddr() net.Addr {
	if s.udp == nil {
		return nil
	}
	return s.udp.Addr()
}

// ActiveSessions 返回当前在线的 TCP 会话数。
func (s *Server) ActiveSessions() int {
	if s.tcp == nil {
		return 0
	}
	return s.tcp.Admission().InUse()
}
