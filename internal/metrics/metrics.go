package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	TCPAccepted      prometheus.Counter
	TCPBytesReceived prometheus.Counter
	DispatchTotal    *prometheus.CounterVec // labels: result=fired|skipped|overflow|script_error
	ModulesLoaded    prometheus.Gauge       // 当前已注册模块槽位数
	ReloadTotal      prometheus.Counter     // 全量重载次数
	OnlineGauge      prometheus.Gauge       // 当前在线会话数
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		TCPAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_accept_total",
			Help: "Total accepted TCP connections.",
		}),
		TCPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_bytes_received_total",
			Help: "Total bytes received over TCP.",
		}),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "module_dispatch_total",
			Help: "Module dispatch outcomes.",
		}, []string{"result"}),
		ModulesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "modules_registered",
			Help: "Currently registered module slots.",
		}),
		ReloadTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modules_reload_total",
			Help: "Full module reloads performed.",
		}),
		OnlineGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "session_online_count",
			Help: "Current number of online sessions.",
		}),
	}
	reg.MustRegister(m.TCPAccepted, m.TCPBytesReceived, m.DispatchTotal, m.ModulesLoaded, m.ReloadTotal, m.OnlineGauge)
	return m
}
