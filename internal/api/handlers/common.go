package handlers

import (
	"time"

	"nvr-worker-go/internal/models"
	"nvr-worker-go/internal/services"
	"nvr-worker-go/internal/worker"
)

// Pipeline is the part of the service container the handlers read.
type Pipeline interface {
	Healthy() bool
	Uptime() time.Duration
	RunnerStats() []worker.Stats
	Cameras() []services.CameraStatus
	Camera(cameraID string) (services.CameraStatus, bool)
	SetMotion(cameraID string, active bool) error
	PipelineStats() services.PipelineStats
	LatestFrame(cameraID string) (*models.Frame, bool)
}

type ErrorResponse struct {
	Error string `json:"error" example:"camera not found"`
}

type SuccessResponse struct {
	Message string `json:"message" example:"ok"`
}
