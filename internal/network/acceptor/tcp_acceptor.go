package acceptor

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	network "github.com/lk2023060901/echo-garden-go/internal/network"
	"github.com/lk2023060901/echo-garden-go/internal/network/admission"
	"github.com/lk2023060901/echo-garden-go/internal/network/session"
	"github.com/lk2023060901/echo-garden-go/pkg/log"
	"github.com/lk2023060901/echo-garden-go/pkg/metrics"
	"github.com/lk2023060901/echo-garden-go/pkg/util/conc"
	"github.com/lk2023060901/echo-garden-go/pkg/util/merr"
)

// TCPAcceptor 是 Acceptor 接口的 TCP 实现。
//
// 每个被准入的连接对应一个 EchoSession，在协程池的独立 worker 中执行；
// 会话之间互不阻塞。准入计数是唯一的跨会话共享状态。
type TCPAcceptor struct {
	log.Binder

	ln  net.Listener
	cfg Config

	admission *admission.Controller
	sessions  session.SessionManager
	ids       session.IDGenerator
	pool      *conc.Pool

	closing   atomic.Bool
	closeOnce sync.Once
}

// 确保 TCPAcceptor 实现了 Acceptor 接口。
var _ Acceptor = (*TCPAcceptor)(nil)

// NewTCPAcceptor 在给定地址上监听 TCP，并创建接入器。
// 绑定失败时返回 merr.ErrBindFailed。
func NewTCPAcceptor(addr string, cfg Config) (*TCPAcceptor, error) {
	ln, err := net.Listen(network.TransportTCP, addr)
	if err != nil {
		return nil, merr.WrapErrBindFailed(network.TransportTCP, addr, err)
	}
	a, err := NewTCPAcceptorWithListener(ln, cfg)
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	return a, nil
}

// NewTCPAcceptorWithListener 使用已有的 Listener 创建接入器，listener 的所有权转移给接入器。
func NewTCPAcceptorWithListener(ln net.Listener, cfg Config) (*TCPAcceptor, error) {
	if ln == nil {
		return nil, errors.New("acceptor: listener is nil")
	}
	cfg = cfg.withDefaults()

	// 会话内的 panic 已由会话自身完成收尾，这里只记录日志，不让其扩散到进程。
	pool, err := conc.NewPool(cfg.ConnectLimit, conc.WithConcealPanic(true))
	if err != nil {
		return nil, err
	}
	a := &TCPAcceptor{
		ln:        ln,
		cfg:       cfg,
		admission: admission.New(cfg.ConnectLimit),
		sessions:  session.NewRegistry(),
		ids:       &session.Uint64IDGenerator{},
		pool:      pool,
	}
	a.Tag(log.FieldComponent("acceptor"), log.FieldTransport(network.TransportTCP))
	return a, nil
}

// Addr 实现 Acceptor.Addr。
func (a *TCPAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// Sessions 实现 Acceptor.Sessions。
func (a *TCPAcceptor) Sessions() session.SessionManager {
	return a.sessions
}

// Admission 返回接入器使用的准入控制器。
func (a *TCPAcceptor) Admission() *admission.Controller {
	return a.admission
}

// Serve 实现 Acceptor.Serve。
func (a *TCPAcceptor) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := a.Logger()
	rated := logger.With().WithRateGroup("echod.acceptor.rejected", 1, 5)

	// ctx 取消时关闭 listener，使阻塞中的 Accept 返回。
	stop := context.AfterFunc(ctx, func() {
		_ = a.Close()
	})
	defer stop()

	bo := backoff.WithContext(backoff.NewConstantBackOff(a.cfg.AdmissionBackoff), ctx)
	addr := a.Addr().String()

	for {
		conn, err := a.ln.Accept()
		if err != nil {
			if a.closing.Load() || ctx.Err() != nil {
				logger.Info("acceptor stopped", zap.String("addr", addr))
				return nil
			}
			err = merr.WrapErrAcceptFailed(addr, err)
			logger.Error("acceptor stopped", zap.String("addr", addr), zap.Error(err))
			return err
		}

		if !a.admission.TryAdmit() {
			a.reject(rated, conn)
			a.pause(bo)
			continue
		}
		metrics.TCPConnectionsTotal.WithLabelValues(metrics.AdmittedLabel).Inc()
		a.spawn(ctx, logger, conn)
	}
}

// reject 关闭未获得准入的连接。
func (a *TCPAcceptor) reject(logger *log.MLogger, conn net.Conn) {
	metrics.TCPConnectionsTotal.WithLabelValues(metrics.RejectedLabel).Inc()
	logger.RatedWarn(1, "connection rejected",
		log.FieldRemote(conn.RemoteAddr()),
		zap.Int("limit", a.admission.Limit()))
	_ = conn.Close()
}

// pause 在并发已满时暂停一个退避间隔，ctx 取消时立即返回。
func (a *TCPAcceptor) pause(bo backoff.BackOffContext) {
	d := bo.NextBackOff()
	if d == backoff.Stop {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-bo.Context().Done():
	}
}

// spawn 为已准入的连接创建会话并提交到协程池。
func (a *TCPAcceptor) spawn(ctx context.Context, logger *log.MLogger, conn net.Conn) {
	id := a.ids.Next()
	rel := &slotReleaser{acceptor: a, id: id}
	sess := session.NewEchoSession(ctx, id, conn, a.cfg.sessionConfig(), rel, logger)

	if err := a.sessions.Register(sess); err != nil {
		logger.Warn("register session failed", log.FieldSession(id), zap.Error(err))
		_ = sess.Close()
		a.admission.Release()
		return
	}
	// 停机与提交并发时，由这里补做关闭。
	if a.closing.Load() {
		_ = sess.Close()
		rel.Release()
		return
	}
	if err := a.pool.Submit(sess.Serve); err != nil {
		logger.Warn("submit session failed", log.FieldSession(id), zap.Error(err))
		_ = sess.Close()
		rel.Release()
	}
}

// Close 实现 Acceptor.Close。
func (a *TCPAcceptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.closing.Store(true)
		err = a.ln.Close()
		session.CloseAll(a.sessions)
		a.pool.Release()
	})
	if network.IsClosed(err) {
		return nil
	}
	return err
}

// slotReleaser 在会话结束时移除会话索引并归还准入槽位，只生效一次。
type slotReleaser struct {
	acceptor *TCPAcceptor
	id       uint64
	once     sync.Once
}

func (r *slotReleaser) Release() {
	r.once.Do(func() {
		_ = r.acceptor.sessions.Unregister(r.id)
		r.acceptor.admission.Release()
	})
}
