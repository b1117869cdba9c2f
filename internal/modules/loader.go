package modules

import (
	"path/filepath"

	"go.uber.org/zap"
)

// ScriptLoader 把脚本文件装入运行时并返回脚本身份
type ScriptLoader interface {
	LoadHandler(path string) (int, error)
}

// Loader 按模块定义构建并注册模块
type Loader struct {
	registry  *Registry
	runtime   ScriptLoader
	scriptDir string
	logger    *zap.Logger
}

// NewLoader 创建模块装载器
func NewLoader(registry *Registry, runtime ScriptLoader, scriptDir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{registry: registry, runtime: runtime, scriptDir: scriptDir, logger: logger}
}

// LoadAll 逐条处理定义：配置失败跳过（不触碰注册表）；
// 脚本加载失败仍注册未加载槽位，等待后续重载就地合并；
// 注册冲突仅记日志，已有绑定不受影响。返回成功注册条数。
func (l *Loader) LoadAll(defs []Def) int {
	registered := 0
	for i, def := range defs {
		m := NewModule()
		if err := m.Configure(def); err != nil {
			l.logger.Error("configure module failed",
				zap.Int("index", i),
				zap.String("type", def.Type),
				zap.Error(err),
			)
			continue
		}

		if def.Script != "" {
			path := def.Script
			if l.scriptDir != "" {
				path = filepath.Join(l.scriptDir, def.Script)
			}
			if id, err := l.runtime.LoadHandler(path); err != nil {
				l.logger.Error("load module script failed",
					zap.Uint8("opcode", m.Opcode()),
					zap.String("script", path),
					zap.Error(err),
				)
			} else {
				m.Bind(id)
			}
		}

		if !l.registry.Register(m) {
			l.logger.Error("module registration conflict",
				zap.Uint8("opcode", m.Opcode()),
				zap.String("kind", m.Kind().String()),
			)
			continue
		}
		registered++
	}
	return registered
}
