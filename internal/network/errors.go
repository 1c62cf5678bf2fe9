package network

import (
	"io"
	"net"

	"github.com/cockroachdb/errors"
)

// Stage 表示回显链路中的处理阶段。
//
// 主要用于在日志中标记错误发生的位置，便于监控与排查。
type Stage string

const (
	StageBind    Stage = "bind"    // 绑定监听地址
	StageAccept  Stage = "accept"  // 监听器接受新连接
	StageAdmit   Stage = "admit"   // 并发准入
	StageRecv    Stage = "recv"    // 读取对端字节
	StageSend    Stage = "send"    // 回写对端字节
	StageRecvUDP Stage = "recv_udp"
	StageSendUDP Stage = "send_udp"
)

const (
	TransportTCP = "tcp"
	TransportUDP = "udp"
)

// ErrShortWrite 表示请求写入 N 字节但底层连接写入了 0 字节。
var ErrShortWrite = errors.New("network: short write")

// IsClosed 判断 err 是否代表对端正常关闭或本端已关闭连接。
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

// IsTimeout 判断 err 是否为读写 deadline 超时。
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
