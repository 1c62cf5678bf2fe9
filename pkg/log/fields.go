package log

import (
	"net"

	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameRemote    = "remote"
	FieldNameTransport = "transport"
	FieldNameSession   = "session"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldRemote 返回一个包含对端地址的 zap 字段，addr 为 nil 时输出空串。
func FieldRemote(addr net.Addr) zap.Field {
	if addr == nil {
		return zap.String(FieldNameRemote, "")
	}
	return zap.String(FieldNameRemote, addr.String())
}

// FieldTransport 返回一个包含传输层协议（tcp/udp）的 zap 字段。
func FieldTransport(transport string) zap.Field {
	return zap.String(FieldNameTransport, transport)
}

// FieldSession 返回一个包含会话 ID 的 zap 字段。
func FieldSession(id uint64) zap.Field {
	return zap.Uint64(FieldNameSession, id)
}
