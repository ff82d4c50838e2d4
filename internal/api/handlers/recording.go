package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nvr-worker-go/internal/logging"
	"nvr-worker-go/internal/models"
	"nvr-worker-go/internal/services/catalog"
)

// RecordingStore is the read side of the recording catalog.
type RecordingStore interface {
	List(ctx context.Context, f catalog.Filter) ([]catalog.Recording, error)
	Get(ctx context.Context, id string) (*catalog.Recording, error)
}

type RecordingHandler struct {
	store RecordingStore
}

// NewRecordingHandler accepts a nil store when the catalog is disabled.
func NewRecordingHandler(store RecordingStore) *RecordingHandler {
	return &RecordingHandler{store: store}
}

type RecordingQuery struct {
	Camera string `form:"camera"`
	Type   string `form:"type"`
	Since  string `form:"since"`
	Until  string `form:"until"`
	Limit  int    `form:"limit"`
}

type RecordingListResponse struct {
	Recordings []catalog.Recording `json:"recordings"`
	Count      int                 `json:"count"`
}

// ListRecordings searches uploaded recordings
// @Summary List recordings
// @Description Uploaded videos and snapshots, newest first
// @Tags recordings
// @Produce json
// @Param camera query string false "Camera ID"
// @Param type query string false "image or video"
// @Param since query string false "RFC3339 lower bound"
// @Param until query string false "RFC3339 upper bound"
// @Param limit query int false "Maximum results (default 50)"
// @Success 200 {object} RecordingListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /recordings [get]
func (h *RecordingHandler) ListRecordings(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "recording catalog disabled"})
		return
	}

	var q RecordingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	filter := catalog.Filter{CameraID: q.Camera, FileType: q.Type, Limit: q.Limit}
	if q.Type != "" && !models.FileType(q.Type).IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "type must be image or video"})
		return
	}
	var err error
	if filter.Since, err = parseTime(q.Since); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid since: " + err.Error()})
		return
	}
	if filter.Until, err = parseTime(q.Until); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid until: " + err.Error()})
		return
	}

	recordings, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to list recordings")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if recordings == nil {
		recordings = []catalog.Recording{}
	}
	c.JSON(http.StatusOK, RecordingListResponse{Recordings: recordings, Count: len(recordings)})
}

// GetRecording returns one catalog entry
// @Summary Get a recording
// @Tags recordings
// @Produce json
// @Param id path string true "Recording ID"
// @Success 200 {object} catalog.Recording
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /recordings/{id} [get]
func (h *RecordingHandler) GetRecording(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "recording catalog disabled"})
		return
	}

	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "recording not found"})
		return
	}
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to get recording")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
