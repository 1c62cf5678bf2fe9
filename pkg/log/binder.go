package log

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Binder 嵌入到 acceptor/responder 等组件中，持有可替换的组件 Logger。
// 未绑定时使用全局 Logger；Tag 设置的字段附加在每次取到的 Logger 上。
type Binder struct {
	bound atomic.Pointer[MLogger]
	tags  []zap.Field
}

// Tag 设置组件固定字段，只应在组件构造时调用。
func (b *Binder) Tag(fields ...zap.Field) {
	b.tags = fields
}

// SetLogger 绑定 Logger，nil 表示恢复为全局 Logger。
func (b *Binder) SetLogger(logger *MLogger) {
	b.bound.Store(logger)
}

func (b *Binder) Logger() *MLogger {
	l := b.bound.Load()
	if l == nil {
		l = With()
	}
	if len(b.tags) == 0 {
		return l
	}
	return l.With(b.tags...)
}
