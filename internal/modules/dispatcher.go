package modules

import (
	"errors"

	"go.uber.org/zap"

	"github.com/odyssia-dev/realmgate/internal/metrics"
	"github.com/odyssia-dev/realmgate/internal/scripting"
	"github.com/odyssia-dev/realmgate/internal/session"
	"github.com/odyssia-dev/realmgate/internal/wire"
)

// SessionResolver 按整数 ID 解析在线会话
type SessionResolver interface {
	Get(id uint32) (*session.Session, bool)
}

// Executor 执行桥：将已加载模块的脚本函数对会话与报文同步调用一次
type Executor interface {
	ExecuteRecvByte(scriptID int, sess *session.Session, msg *wire.Message, opcode byte) error
}

// Dispatcher 将入站 (sessionID, opcode, msg) 路由到绑定表中的脚本处理器
type Dispatcher struct {
	registry *Registry
	sessions SessionResolver
	exec     Executor
	logger   *zap.Logger
	appm     *metrics.AppMetrics
}

// NewDispatcher 创建分发器。appm 可为 nil（不上报指标）。
func NewDispatcher(registry *Registry, sessions SessionResolver, exec Executor, logger *zap.Logger, appm *metrics.AppMetrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, sessions: sessions, exec: exec, logger: logger, appm: appm}
}

// Dispatch 处理一条入站报文。仅产生副作用：
// 未知会话、未绑定 opcode、冷却中均静默返回；单次调用至多触发一次执行桥。
// msg 的底层存储仅在本次调用期间有效。
func (d *Dispatcher) Dispatch(sessionID uint32, opcode byte, msg *wire.Message) {
	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		// 断线与在途包的竞争，不是错误
		return
	}

	scriptID, delay, ok := d.registry.findRunnable(opcode, sess.MayRun)
	if !ok {
		d.count("skipped")
		return
	}

	sess.RecordFired(opcode, delay)

	if err := d.exec.ExecuteRecvByte(scriptID, sess, msg, opcode); err != nil {
		switch {
		case errors.Is(err, scripting.ErrCallStackOverflow):
			d.count("overflow")
		default:
			d.count("script_error")
			d.logger.Error("module script failed",
				zap.Uint32("session_id", sess.ID()),
				zap.Uint8("opcode", opcode),
				zap.Error(err),
			)
		}
		return
	}
	d.count("fired")
}

func (d *Dispatcher) count(result string) {
	if d.appm != nil {
		d.appm.DispatchTotal.WithLabelValues(result).Inc()
	}
}
