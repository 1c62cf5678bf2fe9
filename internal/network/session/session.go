package session

import (
	"context"
	"net"
)

// State 表示会话的生命周期阶段。
type State int32

const (
	// StateActive 表示会话持有连接并处于读写循环中。
	StateActive State = iota
	// StateClosed 表示会话已结束，连接已关闭且准入槽位已归还。
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session 抽象了一条 TCP 回显会话。
//
// 约定：
//   - 每个 Session 独占一条底层连接，其它组件不会向该连接写入；
//   - Session ID 使用 64 位无符号整型，在进程内唯一；
//   - 会话结束后即被丢弃，不支持重连。
type Session interface {
	// ID 返回该会话在进程内的唯一标识。
	ID() uint64

	// Context 返回与该会话关联的上下文，会话关闭时触发 Done()。
	Context() context.Context

	// RemoteAddr 返回对端地址，主要用于日志记录。
	RemoteAddr() net.Addr

	// LocalAddr 返回本端地址。
	LocalAddr() net.Addr

	// State 返回会话当前所处的阶段。
	State() State

	// Close 主动关闭该会话，多次调用是幂等的。
	//
	// 说明：
	//   - 仅关闭连接并取消 Context；
	//   - 槽位归还与 "disconnected" 事件由会话自身的读写循环在退出时完成。
	Close() error
}
