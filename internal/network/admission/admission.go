package admission

import (
	"go.uber.org/atomic"
)

// Controller 维护当前在线 TCP 会话数，并据此决定新连接能否获得准入槽位。
//
// 约定：
//   - 计数只通过 TryAdmit/Release 修改，不对外暴露原始的加减操作；
//   - 任意时刻 0 <= InUse() <= Limit()；
//   - 不排队、不保证公平，被拒绝的连接由调用方自行处理。
type Controller struct {
	limit int64
	inUse atomic.Int64
}

// New 创建一个容量为 limit 的准入控制器，limit 小于 1 时按 1 处理。
func New(limit int) *Controller {
	if limit < 1 {
		limit = 1
	}
	return &Controller{limit: int64(limit)}
}

// TryAdmit 在未达上限时占用一个槽位并返回 true；已满时不修改计数并返回 false。
func (c *Controller) TryAdmit() bool {
	for {
		cur := c.inUse.Load()
		if cur >= c.limit {
			return false
		}
		if c.inUse.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release 归还一个槽位。每次成功的 TryAdmit 必须对应一次 Release；
// 计数已为 0 时调用不会使其变为负数。
func (c *Controller) Release() {
	for {
		cur := c.inUse.Load()
		if cur <= 0 {
			return
		}
		if c.inUse.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// InUse 返回当前已占用的槽位数。
func (c *Controller) InUse() int {
	return int(c.inUse.Load())
}

// Limit 返回槽位总数。
func (c *Controller) Limit() int {
	return int(c.limit)
}

// Available 返回剩余可用槽位数。
func (c *Controller) Available() int {
	return int(c.limit - c.inUse.Load())
}
