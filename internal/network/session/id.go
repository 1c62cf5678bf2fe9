package session

import "go.uber.org/atomic"

// IDGenerator 为新会话分配 ID。
type IDGenerator interface {
	Next() uint64
}

// Uint64IDGenerator 是从 1 开始自增的 IDGenerator，零值可直接使用。
type Uint64IDGenerator struct {
	last atomic.Uint64
}

// Next 实现 IDGenerator.Next。
func (g *Uint64IDGenerator) Next() uint64 {
	return g.last.Inc()
}
