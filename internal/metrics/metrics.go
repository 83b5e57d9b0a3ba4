package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// dedi API调用指标，按接口名和结果分类
// outcome取值: ok, http_error, network_error, unauthorized
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedi_console_api_requests_total",
			Help: "Total number of dedi API requests, by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dedi_console_api_request_duration_seconds",
			Help:    "Histogram of dedi API request latencies, by endpoint.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)
)

// 面板HTTP接口指标，path使用路由模板而不是原始URL
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedi_console_http_requests_total",
			Help: "Total number of dashboard HTTP requests, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dedi_console_http_request_duration_seconds",
			Help:    "Histogram of dashboard HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// 更新后刷新重试指标
//
// RefreshAttemptsTotal 每次探测请求计数，result取值: matched, mismatch, error
// RefreshCompletedTotal 每轮刷新结束时计数，reason取值: matched, exhausted, cancelled
var (
	RefreshAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedi_console_refresh_attempts_total",
			Help: "Total number of post-update directory probes, by result.",
		},
		[]string{"result"},
	)

	RefreshCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedi_console_refresh_completed_total",
			Help: "Total number of finished post-update refresh rounds, by reason.",
		},
		[]string{"reason"},
	)
)

// 工作流指标
var (
	WorkflowActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedi_console_workflow_actions_total",
			Help: "Total number of dashboard actions, by action and result.",
		},
		[]string{"action", "result"},
	)

	DirectoryNamespaces = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dedi_console_directory_namespaces",
			Help: "Number of namespaces in the loaded directory, by collection.",
		},
		[]string{"collection"},
	)

	DNSCacheHitRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dedi_console_dns_cache_hit_ratio",
			Help: "Hit ratio of the TXT lookup cache.",
		},
	)
)

// ObserveAPIRequest 记录一次API调用，签名与sdk.RequestObserver一致
func ObserveAPIRequest(endpoint, outcome string, elapsed time.Duration) {
	APIRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	APIRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveHTTPRequest 记录一次面板HTTP请求
func ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	if path == "" {
		path = "<no-route>"
	}
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// RecordAction 记录一次工作流操作的结果
func RecordAction(action string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	WorkflowActionsTotal.WithLabelValues(action, result).Inc()
}
