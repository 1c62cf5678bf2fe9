package responder

import (
	"context"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	network "github.com/lk2023060901/echo-garden-go/internal/network"
	"github.com/lk2023060901/echo-garden-go/pkg/log"
	"github.com/lk2023060901/echo-garden-go/pkg/metrics"
	"github.com/lk2023060901/echo-garden-go/pkg/util/merr"
)

// MaxDatagramSize 为 UDP 数据报的最大负载，保证任意数据报都能被完整回显。
const MaxDatagramSize = 64 * 1024

// UDPResponder 持有唯一的 UDP socket，在单个协程中串行执行 接收-回显-记录 循环。
//
// 说明：
//   - UDP 不受并发准入限制，也不创建会话；
//   - 任意收发错误都会终止循环，并作为 worker 失败返回给上层。
type UDPResponder struct {
	log.Binder

	conn *net.UDPConn

	closing   atomic.Bool
	closeOnce sync.Once
}

// NewUDPResponder 在给定地址上绑定 UDP socket。绑定失败时返回 merr.ErrBindFailed。
func NewUDPResponder(addr string) (*UDPResponder, error) {
	uaddr, err := net.ResolveUDPAddr(network.TransportUDP, addr)
	if err != nil {
		return nil, merr.WrapErrBindFailed(network.TransportUDP, addr, err)
	}
	conn, err := net.ListenUDP(network.TransportUDP, uaddr)
	if err != nil {
		return nil, merr.WrapErrBindFailed(network.TransportUDP, addr, err)
	}
	return NewUDPResponderWithConn(conn)
}

// NewUDPResponderWithConn 使用已绑定的 socket 创建响应器，conn 的所有权转移给响应器。
func NewUDPResponderWithConn(conn *net.UDPConn) (*UDPResponder, error) {
	if conn == nil {
		return nil, errors.New("responder: conn is nil")
	}
	r := &UDPResponder{conn: conn}
	r.Tag(log.FieldComponent("responder"), log.FieldTransport(network.TransportUDP))
	return r, nil
}

// Addr 返回实际绑定的地址。
func (r *UDPResponder) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Serve 运行接收循环，阻塞直至 ctx 取消、Close 被调用或收发出错。
// 因停机退出时返回 nil。
func (r *UDPResponder) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := r.Logger()
	addr := r.Addr().String()

	stop := context.AfterFunc(ctx, func() {
		_ = r.Close()
	})
	defer stop()

	buf := make([]byte, MaxDatagramSize)
	for {
		err := r.echoOnce(buf, logger)
		if err == nil {
			continue
		}
		if r.closing.Load() || ctx.Err() != nil {
			logger.Info("responder stopped", zap.String("addr", addr))
			return nil
		}
		logger.Error("responder stopped", zap.String("addr", addr), zap.Error(err))
		return err
	}
}

// echoOnce 接收一个数据报并原样发回发送方。
func (r *UDPResponder) echoOnce(buf []byte, logger *log.MLogger) error {
	n, peer, err := r.conn.ReadFromUDP(buf)
	if err != nil {
		return merr.WrapErrDatagramIO(r.Addr().String(), err, string(network.StageRecvUDP))
	}
	sent, err := r.conn.WriteToUDP(buf[:n], peer)
	if err != nil {
		return merr.WrapErrDatagramIO(peer.String(), err, string(network.StageSendUDP))
	}
	if sent != n {
		return merr.WrapErrDatagramMismatch(n, sent)
	}

	metrics.UDPDatagramsTotal.Inc()
	metrics.ObserveEcho(metrics.TransportUDP, sent)
	logger.Info("datagram echo", log.FieldRemote(peer), zap.String("text", network.DecodeText(buf[:n])))
	return nil
}

// Close 关闭 UDP socket，使阻塞中的接收返回。
func (r *UDPResponder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.closing.Store(true)
		err = r.conn.Close()
	})
	if network.IsClosed(err) {
		return nil
	}
	return err
}
