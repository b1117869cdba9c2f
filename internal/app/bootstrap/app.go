package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/odyssia-dev/realmgate/internal/config"
	"github.com/odyssia-dev/realmgate/internal/httpserver"
	"github.com/odyssia-dev/realmgate/internal/metrics"
	"github.com/odyssia-dev/realmgate/internal/modules"
	"github.com/odyssia-dev/realmgate/internal/scripting"
	"github.com/odyssia-dev/realmgate/internal/session"
	"github.com/odyssia-dev/realmgate/internal/tcpserver"
)

// Run 统一启动流程：指标/会话/脚本运行时 -> 模块装载 -> HTTP -> TCP -> 信号退出
func Run(cfg *cfgpkg.Config, log *zap.Logger) error {
	log.Info("starting realmgate", zap.String("env", cfg.App.Env))

	// 阶段1: 基础组件
	reg := metrics.NewRegistry()
	appm := metrics.NewAppMetrics(reg)
	metricsHandler := metrics.Handler(reg)

	sessions := session.NewManager()
	runtime := scripting.NewRuntime(cfg.Scripting.MaxCallDepth, log)
	registry := modules.NewRegistry()
	loader := modules.NewLoader(registry, runtime, cfg.Scripting.ScriptDir, log)
	log.Info("basic components initialized", zap.Int("max_call_depth", cfg.Scripting.MaxCallDepth))

	// 阶段2: 模块装载
	loadAll := func() (int, error) {
		defs, err := modules.LoadDefs(cfg.Scripting.ModulesFile)
		if err != nil {
			return 0, err
		}
		n := loader.LoadAll(defs)
		appm.ModulesLoaded.Set(float64(registry.Len()))
		return n, nil
	}
	if n, err := loadAll(); err != nil {
		// 缺少模块定义不阻止启动，网关以空绑定表运行
		log.Warn("load module definitions failed", zap.String("file", cfg.Scripting.ModulesFile), zap.Error(err))
	} else {
		log.Info("modules loaded", zap.Int("registered", n))
	}

	// 全量重载：先解绑再重建 Lua 状态，最后按定义重新装载
	reload := func() (int, error) {
		if err := registry.ClearAll(runtime); err != nil {
			return 0, err
		}
		appm.ReloadTotal.Inc()
		return loadAll()
	}

	dispatcher := modules.NewDispatcher(registry, sessions, runtime, log, appm)

	// 阶段3: HTTP 运维服务（非阻塞）
	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, registry, reload, log)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
		}
	}()
	log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))

	// 阶段4: TCP 网关
	tcpSrv := tcpserver.New(cfg.TCP, sessions, dispatcher.Dispatch, log, appm)
	if err := tcpSrv.Start(); err != nil {
		log.Error("tcp gateway start error", zap.Error(err))
		return err
	}
	log.Info("tcp gateway started", zap.String("addr", cfg.TCP.Addr))

	// 信号处理，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	_ = tcpSrv.Shutdown(ctx)
	return nil
}
