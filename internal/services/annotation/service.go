package annotation

import (
	"context"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/helpers"
	"nvr-worker-go/internal/logging"
	"nvr-worker-go/internal/models"
	"nvr-worker-go/internal/worker"
)

// Service draws detections onto frames on their way to the recorder.
type Service struct {
	cfg     *config.Config
	in      <-chan *models.AnnotatedFrame
	out     chan<- *models.AnnotatedFrame
	overlay Overlay
	logger  zerolog.Logger

	latestMu sync.RWMutex
	latest   map[string]*models.Frame

	annotated atomic.Int64
	passed    atomic.Int64
	dropped   atomic.Int64
}

func NewService(cfg *config.Config, in <-chan *models.AnnotatedFrame, out chan<- *models.AnnotatedFrame) *Service {
	logger := logging.NewServiceLogger(cfg, "annotation")

	defaultColor, err := parseHexColor(cfg.OverlayColor)
	if err != nil {
		logger.Warn().Err(err).Str("color", cfg.OverlayColor).Msg("Invalid overlay color, using red")
		defaultColor = color.RGBA{R: 255, A: 255}
	}

	return &Service{
		cfg: cfg,
		in:  in,
		out: out,
		overlay: Overlay{
			DefaultColor: defaultColor,
			ShowCameraID: cfg.ShowCameraID,
			ShowTime:     cfg.ShowTime,
		},
		logger: logger,
		latest: make(map[string]*models.Frame),
	}
}

func (s *Service) Name() string { return "annotation" }

func (s *Service) Process(ctx context.Context) error {
	af, ok := worker.Receive(ctx, s.in, s.cfg.StageTimeout)
	if !ok || af == nil || af.Frame == nil {
		return nil
	}

	if af.HasDetections() || s.overlay.ShowCameraID || s.overlay.ShowTime {
		if err := s.Annotate(af); err != nil {
			// recording an unannotated frame beats losing it
			s.logger.Warn().Err(err).Str("camera_id", af.Frame.CameraID).Msg("Annotation failed")
		} else {
			s.annotated.Add(1)
		}
	} else {
		s.passed.Add(1)
	}

	s.latestMu.Lock()
	s.latest[af.Frame.CameraID] = af.Frame
	s.latestMu.Unlock()

	if !worker.Send(ctx, s.out, af, s.cfg.HandoffWait) {
		s.dropped.Add(1)
		s.logger.Debug().Str("camera_id", af.Frame.CameraID).Msg("Recorder queue full, frame dropped")
	}
	return nil
}

// Annotate draws onto the frame buffer in place.
func (s *Service) Annotate(af *models.AnnotatedFrame) error {
	mat, err := helpers.FrameToMat(af.Frame)
	if err != nil {
		return fmt.Errorf("annotate: %w", err)
	}
	defer mat.Close()

	s.overlay.DrawDetections(&mat, af.Detections)
	s.overlay.DrawInfo(&mat, af.Frame.CameraID, af.Frame.Time())

	af.Frame.Data = mat.ToBytes()
	return nil
}

// LatestFrame returns the most recent annotated frame of a camera. The
// frame is shared with the recorder and must not be modified.
func (s *Service) LatestFrame(cameraID string) (*models.Frame, bool) {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	f, ok := s.latest[cameraID]
	return f, ok
}

type Stats struct {
	Annotated int64 `json:"frames_annotated"`
	Passed    int64 `json:"frames_passed"`
	Dropped   int64 `json:"frames_dropped"`
}

func (s *Service) Stats() Stats {
	return Stats{
		Annotated: s.annotated.Load(),
		Passed:    s.passed.Load(),
		Dropped:   s.dropped.Load(),
	}
}
