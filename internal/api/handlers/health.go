package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/domain"
)

// HealthHandler reports liveness and dependency status
type HealthHandler struct {
	checks  map[string]domain.Pinger
	version string
	started time.Time
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Each check is pinged on
// every request.
func NewHealthHandler(checks map[string]domain.Pinger, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		version: version,
		started: time.Now(),
		logger:  logger,
	}
}

type memoryStats struct {
	RSS           uint64  `json:"rss"`
	HeapAlloc     uint64  `json:"heapAlloc"`
	SystemUsedPct float64 `json:"systemUsedPercent,omitempty"`
}

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Uptime     string            `json:"uptime"`
	Goroutines int               `json:"goroutines"`
	Memory     memoryStats       `json:"memory"`
	Checks     map[string]string `json:"checks"`
}

// Health handles GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:     "ok",
		Version:    h.version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Memory:     h.memory(ctx),
		Checks:     make(map[string]string, len(h.checks)),
	}

	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("[Health] check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = "down"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "up"
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}

	RenderJSON(w, code, resp)
}

func (h *HealthHandler) memory(ctx context.Context) memoryStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := memoryStats{HeapAlloc: ms.HeapAlloc}

	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfoWithContext(ctx); err == nil {
			stats.RSS = info.RSS
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.SystemUsedPct = vm.UsedPercent
	}

	return stats
}
