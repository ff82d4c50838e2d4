package streamcapture

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/logging"
	"nvr-worker-go/internal/models"
)

// FrameSink receives captured frames. Put must not block.
type FrameSink interface {
	Put(frame *models.Frame) error
	Contains(cameraID string) bool
}

// Capture states
const (
	StateWaiting    = "waiting_for_motion"
	StateConnecting = "connecting"
	StateCapturing  = "capturing"
	StateCooldown   = "cooldown"
)

// Service captures frames from one camera while its motion signal is
// active and pushes them, annotated with motion regions, into the sink.
type Service struct {
	cameraID string
	url      string
	cfg      *config.Config
	sink     FrameSink
	signal   *MotionSignal
	open     TransportFactory
	analyzer *MotionAnalyzer
	now      func() int64
	logger   zerolog.Logger

	state       atomic.Value
	captured    atomic.Int64
	pushed      atomic.Int64
	dropped     atomic.Int64
	skipped     atomic.Int64
	errors      atomic.Int64
	lastFrameAt atomic.Int64
}

// NewService creates a capture stage for a camera feed.
func NewService(cfg *config.Config, feed *config.CameraFeedConfig, sink FrameSink, signal *MotionSignal, open TransportFactory) *Service {
	s := &Service{
		cameraID: feed.ID,
		url:      feed.RTSPURL(),
		cfg:      cfg,
		sink:     sink,
		signal:   signal,
		open:     open,
		analyzer: NewMotionAnalyzer(cfg.MotionMaxRegions, cfg.MotionMinAreaPct, cfg.MotionMaxAreaPct),
		now:      models.NowMillis,
		logger:   logging.WithCamera(logging.NewServiceLogger(cfg, "capture"), feed.ID),
	}
	s.state.Store(StateWaiting)
	return s
}

func (s *Service) Name() string { return "capture:" + s.cameraID }

func (s *Service) CameraID() string { return s.cameraID }

func (s *Service) Signal() *MotionSignal { return s.signal }

// Process waits for motion, then reads the stream until motion ends. A
// transport failure releases the stream and cools down before returning.
func (s *Service) Process(ctx context.Context) error {
	s.state.Store(StateWaiting)
	if !s.signal.Wait(ctx, s.cfg.StageTimeout) {
		return nil
	}

	s.state.Store(StateConnecting)
	s.logger.Info().Msg("Motion active, opening stream")

	transport, err := s.open(s.url)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("open camera %s: %w", s.cameraID, err))
	}
	defer func() {
		if err := transport.Release(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to release stream")
		}
	}()

	if !sleepCtx(ctx, s.cfg.CaptureWarmup) {
		return nil
	}

	s.state.Store(StateCapturing)
	if err := s.capture(ctx, transport); err != nil {
		return s.fail(ctx, fmt.Errorf("capture camera %s: %w", s.cameraID, err))
	}

	s.logger.Info().Int64("frames_pushed", s.pushed.Load()).Msg("Motion ended, stream closed")
	return nil
}

func (s *Service) capture(ctx context.Context, transport Transport) error {
	var prev gocv.Mat
	havePrev := false
	defer func() {
		if havePrev {
			prev.Close()
		}
	}()

	for ctx.Err() == nil && s.signal.Active() {
		// the previous frame has not been consumed yet
		if s.sink.Contains(s.cameraID) {
			if !transport.Grab() {
				return fmt.Errorf("%w: grab failed", ErrTransport)
			}
			s.skipped.Add(1)
			continue
		}

		img, err := transport.Read()
		if err != nil {
			return err
		}
		if err := toBGR(&img); err != nil {
			img.Close()
			return err
		}
		s.captured.Add(1)
		s.lastFrameAt.Store(s.now())

		if !havePrev || prev.Rows() != img.Rows() || prev.Cols() != img.Cols() {
			if havePrev {
				prev.Close()
			}
			prev, havePrev = img, true
			continue
		}

		frame := s.buildFrame(prev, img)
		prev.Close()
		prev = img

		if err := s.sink.Put(frame); err != nil {
			s.dropped.Add(1)
			s.logger.Debug().Err(err).Msg("Frame dropped")
			continue
		}
		s.pushed.Add(1)
	}
	return nil
}

func (s *Service) buildFrame(prev, img gocv.Mat) *models.Frame {
	width, height := img.Cols(), img.Rows()

	regions := s.analyzer.Regions(prev, img)
	detailed := len(regions) > 0
	if !detailed {
		regions = SplitRegions(width, height)
	}

	return models.NewFrame(s.cameraID, img.ToBytes(), width, height, regions, detailed, s.now())
}

func (s *Service) fail(ctx context.Context, err error) error {
	s.errors.Add(1)
	s.state.Store(StateCooldown)
	s.logger.Warn().Err(err).Dur("cooldown", s.cfg.CaptureCooldown).Msg("Stream failure, cooling down")
	sleepCtx(ctx, s.cfg.CaptureCooldown)
	return err
}

// Stats is a snapshot of the capture counters
type Stats struct {
	CameraID       string     `json:"camera_id"`
	State          string     `json:"state"`
	Motion         bool       `json:"motion"`
	MotionSince    time.Time  `json:"motion_since"`
	FramesCaptured int64      `json:"frames_captured"`
	FramesPushed   int64      `json:"frames_pushed"`
	FramesDropped  int64      `json:"frames_dropped"`
	FramesSkipped  int64      `json:"frames_skipped"`
	Errors         int64      `json:"errors"`
	LastFrameAt    *time.Time `json:"last_frame_at,omitempty"`
}

func (s *Service) Stats() Stats {
	st := Stats{
		CameraID:       s.cameraID,
		State:          s.state.Load().(string),
		Motion:         s.signal.Active(),
		MotionSince:    s.signal.Since(),
		FramesCaptured: s.captured.Load(),
		FramesPushed:   s.pushed.Load(),
		FramesDropped:  s.dropped.Load(),
		FramesSkipped:  s.skipped.Load(),
		Errors:         s.errors.Load(),
	}
	if ms := s.lastFrameAt.Load(); ms > 0 {
		t := time.UnixMilli(ms).UTC()
		st.LastFrameAt = &t
	}
	return st
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
