package modules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Def 单个模块的已解析属性集（来自模块定义文件）
type Def struct {
	Type   string `yaml:"type"`             // 处理器类别，目前仅 recvbyte
	Byte   *int   `yaml:"byte"`             // 监听的 opcode（0-255）
	Delay  int    `yaml:"delay,omitempty"`  // 最小重触发间隔（ms），0 不限流
	Script string `yaml:"script,omitempty"` // 脚本文件（相对脚本目录）
}

// DefFile 模块定义文件结构
type DefFile struct {
	Modules []Def `yaml:"modules"`
}

// LoadDefs 从 YAML 文件加载模块定义
func LoadDefs(path string) ([]Def, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module defs: %w", err)
	}
	var f DefFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("unmarshal module defs: %w", err)
	}
	return f.Modules, nil
}
