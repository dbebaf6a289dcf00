// Package metrics 提供监控指标功能，支持 Prometheus 标准.
//
// Example:
//
//	import "github.com/yeisme/histvault/pkg/metrics"
//
//	err := metrics.InitMetrics(config.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	metrics.VersionsSynced.WithLabelValues(vaultID).Add(float64(n))
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/histvault/pkg/configs"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// VersionsSynced 服务端成功入库的版本数.
	VersionsSynced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "histvault_versions_synced_total",
			Help: "Total number of versions accepted by the sync endpoint",
		},
		[]string{"vault_id"},
	)

	// VersionsRejected 服务端按条目拒绝的版本数.
	VersionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "histvault_versions_rejected_total",
			Help: "Total number of versions rejected by the sync endpoint",
		},
		[]string{"vault_id"},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()
)

// InitMetrics 初始化Metrics.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	// 注册标准收集器
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 注册自定义指标
	registry.MustRegister(RequestCounter, RequestDuration, VersionsSynced, VersionsRejected)

	return nil
}

// RegisterHandler 将指标端点挂载到 gin 引擎.
func RegisterHandler(config configs.MetricsConfig, engine *gin.Engine) {
	if !config.Enabled {
		return
	}

	engine.GET(config.Path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
}

// GetRegistry 获取Prometheus注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}
