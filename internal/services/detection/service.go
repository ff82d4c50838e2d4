package detection

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/helpers"
	"nvr-worker-go/internal/logging"
	"nvr-worker-go/internal/models"
	"nvr-worker-go/internal/services/multiplexer"
	"nvr-worker-go/internal/worker"
)

// FrameSource hands out frames to detect on.
type FrameSource interface {
	Get(ctx context.Context, timeout time.Duration) (*models.Frame, error)
}

// Service pulls frames, runs the detector over each frame's regions and
// forwards the frames with their detections.
type Service struct {
	cfg        *config.Config
	src        FrameSource
	out        chan<- *models.AnnotatedFrame
	detector   Detector
	threshold  float32
	mergeRatio float64
	allowed    map[string]bool
	logger     zerolog.Logger

	processed      atomic.Int64
	withDetections atomic.Int64
	failed         atomic.Int64
	dropped        atomic.Int64
	lastDuration   atomic.Int64
}

func NewService(cfg *config.Config, src FrameSource, out chan<- *models.AnnotatedFrame, detector Detector) *Service {
	allowed := make(map[string]bool, len(cfg.AllowedClasses))
	for _, label := range cfg.AllowedClasses {
		allowed[label] = true
	}
	return &Service{
		cfg:        cfg,
		src:        src,
		out:        out,
		detector:   detector,
		threshold:  float32(cfg.ConfidenceThreshold),
		mergeRatio: cfg.MergeOverlapRatio,
		allowed:    allowed,
		logger:     logging.NewServiceLogger(cfg, "detection"),
	}
}

func (s *Service) Name() string { return "detection" }

func (s *Service) Process(ctx context.Context) error {
	frame, err := s.src.Get(ctx, s.cfg.StageTimeout)
	if err != nil {
		if errors.Is(err, multiplexer.ErrEmpty) || ctx.Err() != nil {
			return nil
		}
		return err
	}

	start := time.Now()
	detections, err := s.Detect(frame)
	s.lastDuration.Store(int64(time.Since(start)))
	if err != nil {
		s.failed.Add(1)
		return fmt.Errorf("detect on camera %s: %w", frame.CameraID, err)
	}
	s.processed.Add(1)

	annotated := &models.AnnotatedFrame{Frame: frame, Detections: detections}
	if annotated.HasDetections() {
		s.withDetections.Add(1)
		s.logger.Debug().
			Str("camera_id", frame.CameraID).
			Int("detections", len(detections)).
			Bool("detailed", frame.Detailed).
			Dur("duration", time.Since(start)).
			Msg("Objects detected")
	}

	if !worker.Send(ctx, s.out, annotated, s.cfg.HandoffWait) {
		s.dropped.Add(1)
		s.logger.Debug().Str("camera_id", frame.CameraID).Msg("Annotation queue full, frame dropped")
	}
	return nil
}

// Detect runs the model over every region of the frame and returns the
// merged detections in frame coordinates.
func (s *Service) Detect(frame *models.Frame) ([]models.Detection, error) {
	mat, err := helpers.FrameToMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	var detections []models.Detection
	for _, region := range frame.Regions {
		r := helpers.ClampRect(region, frame.Width, frame.Height)
		if r.Area() == 0 {
			continue
		}

		found, err := s.detectRegion(mat, r)
		if err != nil {
			return nil, err
		}
		found = FilterConfidence(found, s.threshold)
		detections = append(detections, Remap(found, r)...)
	}

	detections = FilterClasses(detections, s.allowed)
	return Merge(detections, s.mergeRatio), nil
}

func (s *Service) detectRegion(mat gocv.Mat, r models.Rectangle) ([]models.Detection, error) {
	crop := mat.Region(helpers.ToImageRect(r))
	defer crop.Close()
	return s.detector.Detect(crop)
}

// Warmup runs the model once on an image file so the first real frame
// does not pay the initialisation cost.
func (s *Service) Warmup(path string) error {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return fmt.Errorf("failed to read warmup image %s", path)
	}
	defer img.Close()

	frame := models.NewFrame("warmup", img.ToBytes(), img.Cols(), img.Rows(), nil, false, models.NowMillis())
	frame.Regions = []models.Rectangle{frame.Bounds()}

	start := time.Now()
	detections, err := s.Detect(frame)
	if err != nil {
		return fmt.Errorf("warmup detection: %w", err)
	}

	labels := make([]string, 0, len(detections))
	for _, d := range detections {
		labels = append(labels, d.String())
	}
	s.logger.Info().
		Str("model", s.detector.Name()).
		Strs("detections", labels).
		Dur("duration", time.Since(start)).
		Msg("Detector warmed up")
	return nil
}

type Stats struct {
	Model          string  `json:"model"`
	Processed      int64   `json:"frames_processed"`
	WithDetections int64   `json:"frames_with_detections"`
	Failed         int64   `json:"frames_failed"`
	Dropped        int64   `json:"frames_dropped"`
	LastDurationMs float64 `json:"last_duration_ms"`
}

func (s *Service) Stats() Stats {
	return Stats{
		Model:          s.detector.Name(),
		Processed:      s.processed.Load(),
		WithDetections: s.withDetections.Load(),
		Failed:         s.failed.Load(),
		Dropped:        s.dropped.Load(),
		LastDurationMs: float64(time.Duration(s.lastDuration.Load()).Microseconds()) / 1000,
	}
}
