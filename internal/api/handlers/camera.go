package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nvr-worker-go/internal/helpers"
	"nvr-worker-go/internal/logging"
	"nvr-worker-go/internal/services"
)

type CameraHandler struct {
	pipeline    Pipeline
	jpegQuality int
}

func NewCameraHandler(pipeline Pipeline, jpegQuality int) *CameraHandler {
	return &CameraHandler{pipeline: pipeline, jpegQuality: jpegQuality}
}

type CameraListResponse struct {
	Cameras []services.CameraStatus `json:"cameras"`
	Count   int                     `json:"count"`
}

// MotionRequest sets the motion state of a webhook camera
type MotionRequest struct {
	Motion *bool `json:"motion" binding:"required" example:"true"`
}

type MotionResponse struct {
	CameraID string `json:"camera_id" example:"front"`
	Motion   bool   `json:"motion" example:"true"`
}

// ListCameras lists all cameras
// @Summary List all cameras
// @Description Capture state and counters of every configured camera
// @Tags cameras
// @Produce json
// @Success 200 {object} CameraListResponse
// @Router /cameras [get]
func (h *CameraHandler) ListCameras(c *gin.Context) {
	cameras := h.pipeline.Cameras()
	c.JSON(http.StatusOK, CameraListResponse{
		Cameras: cameras,
		Count:   len(cameras),
	})
}

// GetCamera gets camera details
// @Summary Get camera details
// @Description Capture state and counters of one camera
// @Tags cameras
// @Produce json
// @Param id path string true "Camera ID"
// @Success 200 {object} services.CameraStatus
// @Failure 404 {object} ErrorResponse
// @Router /cameras/{id} [get]
func (h *CameraHandler) GetCamera(c *gin.Context) {
	status, ok := h.pipeline.Camera(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "camera not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// SetMotion drives a webhook camera
// @Summary Report motion for a camera
// @Description Starts or stops capture for a camera whose motion source is "webhook"
// @Tags cameras
// @Accept json
// @Produce json
// @Param id path string true "Camera ID"
// @Param request body MotionRequest true "Motion state"
// @Success 200 {object} MotionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /cameras/{id}/motion [post]
func (h *CameraHandler) SetMotion(c *gin.Context) {
	cameraID := c.Param("id")

	var req MotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logging.Warn(c).Err(err).Msg("Invalid motion request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	err := h.pipeline.SetMotion(cameraID, *req.Motion)
	switch {
	case errors.Is(err, services.ErrUnknownCamera):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "camera not found"})
		return
	case errors.Is(err, services.ErrNotWebhook):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		logging.Error(c).Err(err).Msg("Failed to set motion")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	logging.Info(c).Bool("motion", *req.Motion).Msg("Motion updated via webhook")
	c.JSON(http.StatusOK, MotionResponse{CameraID: cameraID, Motion: *req.Motion})
}

// GetLatestFrame returns the last annotated frame as JPEG
// @Summary Latest annotated frame
// @Description Most recent frame of the camera after annotation, only while it is capturing or shortly after
// @Tags cameras
// @Produce jpeg
// @Param id path string true "Camera ID"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /cameras/{id}/frame [get]
func (h *CameraHandler) GetLatestFrame(c *gin.Context) {
	cameraID := c.Param("id")
	if _, ok := h.pipeline.Camera(cameraID); !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "camera not found"})
		return
	}

	frame, ok := h.pipeline.LatestFrame(cameraID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no frame captured yet"})
		return
	}

	data, err := helpers.EncodeJPEG(frame, h.jpegQuality)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to encode frame")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.Header("X-Frame-Timestamp", frame.Time().Format(time.RFC3339Nano))
	c.Data(http.StatusOK, "image/jpeg", data)
}
