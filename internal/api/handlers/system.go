package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"nvr-worker-go/internal/services"
)

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	WorkerID string
	pipeline Pipeline
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(workerID string, pipeline Pipeline) *SystemHandler {
	return &SystemHandler{
		WorkerID: workerID,
		pipeline: pipeline,
	}
}

type RuntimeStats struct {
	MemoryMB   uint64  `json:"memory_mb"`
	CPUCores   int     `json:"cpu_cores"`
	Goroutines int     `json:"goroutines"`
	GoVersion  string  `json:"go_version"`
	Uptime     float64 `json:"uptime_seconds"`
}

type SystemStatsResponse struct {
	WorkerID  string                 `json:"worker_id"`
	Runtime   RuntimeStats           `json:"runtime"`
	Pipeline  services.PipelineStats `json:"pipeline"`
	Timestamp int64                  `json:"timestamp"`
}

// @Summary Get system stats
// @Description Runtime metrics and per-stage pipeline counters
// @Tags system
// @Produce json
// @Success 200 {object} SystemStatsResponse
// @Router /system/stats [get]
func (h *SystemHandler) GetStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, SystemStatsResponse{
		WorkerID: h.WorkerID,
		Runtime: RuntimeStats{
			MemoryMB:   m.Alloc / 1024 / 1024,
			CPUCores:   runtime.NumCPU(),
			Goroutines: runtime.NumGoroutine(),
			GoVersion:  runtime.Version(),
			Uptime:     h.pipeline.Uptime().Seconds(),
		},
		Pipeline:  h.pipeline.PipelineStats(),
		Timestamp: time.Now().Unix(),
	})
}
