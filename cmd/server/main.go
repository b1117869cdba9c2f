package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/odyssia-dev/realmgate/internal/app/bootstrap"
	cfgpkg "github.com/odyssia-dev/realmgate/internal/config"
	"github.com/odyssia-dev/realmgate/internal/logging"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "config file path")
	flag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(configPath)
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 启动
	if err := bootstrap.Run(cfg, zap.L()); err != nil {
		os.Exit(1)
	}
}
