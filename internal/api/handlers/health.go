package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/worker"
)

type HealthHandler struct {
	cfg      *config.Config
	pipeline Pipeline
}

func NewHealthHandler(cfg *config.Config, pipeline Pipeline) *HealthHandler {
	return &HealthHandler{cfg: cfg, pipeline: pipeline}
}

type HealthResponse struct {
	Status   string         `json:"status" example:"healthy"`
	WorkerID string         `json:"worker_id" example:"nvr-1"`
	Uptime   float64        `json:"uptime_seconds"`
	Stages   []worker.Stats `json:"stages"`
}

type WorkerInfoResponse struct {
	WorkerID     string   `json:"worker_id" example:"nvr-1"`
	Status       string   `json:"status" example:"running"`
	Version      string   `json:"version" example:"1.0.0"`
	Environment  string   `json:"environment" example:"development"`
	Model        string   `json:"model" example:"tf_ssd_mobilenet_v2"`
	Cameras      int      `json:"cameras" example:"2"`
	Capabilities []string `json:"capabilities"`
}

// @Summary Health check
// @Description Reports whether every pipeline stage is running
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		WorkerID: h.cfg.WorkerID,
		Uptime:   h.pipeline.Uptime().Seconds(),
		Stages:   h.pipeline.RunnerStats(),
	}
	status := http.StatusOK
	if !h.pipeline.Healthy() {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// @Summary Worker information
// @Description Get basic worker information and capabilities
// @Tags health
// @Produce json
// @Success 200 {object} WorkerInfoResponse
// @Router / [get]
func (h *HealthHandler) WorkerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, WorkerInfoResponse{
		WorkerID:    h.cfg.WorkerID,
		Status:      "running",
		Version:     h.cfg.Version,
		Environment: h.cfg.Environment,
		Model:       h.cfg.DetectorModel,
		Cameras:     len(h.pipeline.Cameras()),
		Capabilities: []string{
			"motion_gated_capture",
			"object_detection",
			"segment_recording",
			"object_storage_upload",
		},
	})
}
