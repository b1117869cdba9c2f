package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/odyssia-dev/realmgate/internal/config"
	"github.com/odyssia-dev/realmgate/internal/modules"
)

// ReloadFunc 触发模块全量重载，返回重载后注册的模块数
type ReloadFunc func() (int, error)

// Server 运维 HTTP 服务封装
type Server struct {
	srv *http.Server
}

// New 创建并配置 Gin + HTTP Server，注册健康检查、指标与模块管理路由
func New(cfg cfgpkg.HTTPConfig, metricsPath string, metricsHandler http.Handler, registry *modules.Registry, reload ReloadFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		c.String(http.StatusOK, "ready")
	})
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	if registry != nil {
		r.GET("/api/modules", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"modules": registry.Snapshot()})
		})
	}
	if reload != nil {
		r.POST("/api/reload", func(c *gin.Context) {
			n, err := reload()
			if err != nil {
				logger.Error("module reload failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			logger.Info("modules reloaded", zap.Int("registered", n))
			c.JSON(http.StatusOK, gin.H{"registered": n})
		})
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv}
}

// Start 启动 HTTP 服务（阻塞）
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
