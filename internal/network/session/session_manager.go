package session

// SessionManager 维护当前所有在线会话的索引。
//
// 职责说明：
//   - 只负责会话的注册和移除，不直接创建底层连接；
//   - Session 的具体生命周期由 acceptor 决定；
//   - 停机时 acceptor 通过 Range 强制关闭仍在运行的会话。
type SessionManager interface {
	// Register 将一个已创建好的 Session 注册到管理器中。
	// 当存在相同 ID 的会话时返回错误，避免覆盖旧会话。
	Register(sess Session) error

	// Unregister 从管理器中移除指定 id 的会话，仅删除索引。
	Unregister(id uint64) error

	// Range 遍历当前所有在线会话，fn 返回 false 时中断遍历。
	Range(fn func(sess Session) bool)

	// Count 返回当前已注册的会话数量。
	Count() int
}

// CloseAll 关闭 m 中登记的全部会话，返回关闭的数量。
func CloseAll(m SessionManager) int {
	if m == nil {
		return 0
	}
	closed := 0
	m.Range(func(sess Session) bool {
		_ = sess.Close()
		closed++
		return true
	})
	return closed
}
