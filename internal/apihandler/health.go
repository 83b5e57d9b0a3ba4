package apihandler

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hewenyu/dedi-console/internal/metrics"
)

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Service   string         `json:"service"`
	Details   map[string]any `json:"details,omitempty"`
}

// 应用启动时间
var startTime = time.Now()

// healthHandler 健康检查
func (h *EchoHandler) healthHandler(c echo.Context) error {
	details := map[string]any{
		"api_base_url": h.cfg.API.BaseURL,
		"uptime":       time.Since(startTime).String(),
		"resources":    getResourceUsage(),
		"busy":         h.dash.BusyState(),
	}

	if h.dnsCache != nil {
		hitRate := h.dnsCache.HitRate()
		metrics.DNSCacheHitRate.Set(hitRate)
		details["dns_cache_entries"] = h.dnsCache.Len()
		details["dns_cache_hit_rate"] = hitRate
	}

	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   "dedi-console",
		Details:   details,
	})
}

// getResourceUsage 获取资源使用情况
func getResourceUsage() map[string]any {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]any{
		"memory_alloc":   formatBytes(memStats.Alloc),
		"memory_sys":     formatBytes(memStats.Sys),
		"num_gc":         memStats.NumGC,
		"num_goroutines": runtime.NumGoroutine(),
	}
}

// formatBytes 将字节数格式化为可读形式
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
