package recorder

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/logging"
	"nvr-worker-go/internal/models"
	"nvr-worker-go/internal/worker"
)

// Service turns annotated frames into video segments and snapshot images
// and hands the finished files to the upload queue.
type Service struct {
	cfg     *config.Config
	in      <-chan *models.AnnotatedFrame
	out     chan<- models.OutputRecord
	manager *Manager
	logger  zerolog.Logger
	now     func() int64

	emitted atomic.Int64
	dropped atomic.Int64
}

func NewService(cfg *config.Config, in <-chan *models.AnnotatedFrame, out chan<- models.OutputRecord, newMuxer MuxerFactory, snapshots Snapshotter) *Service {
	logger := logging.NewServiceLogger(cfg, "recorder")
	return &Service{
		cfg:     cfg,
		in:      in,
		out:     out,
		manager: NewManager(cfg.VideoOutputDir, cfg.SegmentIdleTimeout, cfg.SegmentMaxDuration, newMuxer, snapshots, logger),
		logger:  logger,
		now:     models.NowMillis,
	}
}

func (s *Service) Name() string { return "recorder" }

func (s *Service) Process(ctx context.Context) error {
	if af, ok := worker.Receive(ctx, s.in, s.cfg.StageTimeout); ok && af != nil && af.Frame != nil {
		s.emit(ctx, s.manager.Write(af), s.cfg.HandoffWait)
	}
	s.emit(ctx, s.manager.CloseEligible(s.now()), s.cfg.HandoffWait)
	return nil
}

// Teardown finalises every open segment. The upload queue gets a longer
// wait here since nothing else will retry these records.
func (s *Service) Teardown() {
	records := s.manager.CloseAll()
	if len(records) > 0 {
		s.logger.Info().Int("records", len(records)).Msg("Flushing open segments")
	}
	s.emit(context.Background(), records, s.cfg.TeardownWait)
}

func (s *Service) emit(ctx context.Context, records []models.OutputRecord, wait time.Duration) {
	for _, rec := range records {
		if worker.Send(ctx, s.out, rec, wait) {
			s.emitted.Add(1)
			continue
		}
		s.dropped.Add(1)
		s.logger.Error().
			Str("camera_id", rec.CameraID).
			Str("path", rec.FilePath).
			Msg("Upload queue full, output record dropped")
	}
}

type Stats struct {
	ManagerStats
	RecordsEmitted int64 `json:"records_emitted"`
	RecordsDropped int64 `json:"records_dropped"`
}

func (s *Service) Stats() Stats {
	return Stats{
		ManagerStats:   s.manager.Stats(),
		RecordsEmitted: s.emitted.Load(),
		RecordsDropped: s.dropped.Load(),
	}
}
