package uploader

import (
	"context"
	"errors"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"

	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/logging"
	"nvr-worker-go/internal/models"
	"nvr-worker-go/internal/services/catalog"
	"nvr-worker-go/internal/services/messaging"
	"nvr-worker-go/internal/worker"
)

var ErrNoStore = errors.New("object storage unavailable")

// Indexer records uploaded files for later lookup.
type Indexer interface {
	Add(ctx context.Context, rec models.OutputRecord, bucket, key string, size int64) (*catalog.Recording, error)
}

// Publisher announces uploaded files.
type Publisher interface {
	PublishRecording(event messaging.RecordingEvent) error
}

// Service moves finished files from local disk to object storage. Local
// files are removed whether or not the upload worked; failed uploads are
// logged and not retried.
type Service struct {
	cfg    *config.Config
	in     <-chan models.OutputRecord
	store  ObjectStore
	index  Indexer
	events Publisher
	logger zerolog.Logger

	uploaded      atomic.Int64
	failed        atomic.Int64
	bytesUploaded atomic.Int64
	removeErrors  atomic.Int64
}

// NewService builds the upload stage. store may be nil when storage could
// not be reached at startup; index and events are optional.
func NewService(cfg *config.Config, in <-chan models.OutputRecord, store ObjectStore, index Indexer, events Publisher) *Service {
	return &Service{
		cfg:    cfg,
		in:     in,
		store:  store,
		index:  index,
		events: events,
		logger: logging.NewServiceLogger(cfg, "uploader"),
	}
}

func (s *Service) Name() string { return "uploader" }

func (s *Service) Process(ctx context.Context) error {
	rec, ok := worker.Receive(ctx, s.in, s.cfg.StageTimeout)
	if !ok {
		return nil
	}
	// an upload already in flight finishes even while the stage stops
	return s.Upload(context.WithoutCancel(ctx), rec)
}

// Teardown uploads whatever is still queued.
func (s *Service) Teardown() {
	pending := worker.Drain(s.in)
	if len(pending) == 0 {
		return
	}
	s.logger.Info().Int("pending", len(pending)).Msg("Draining upload queue")
	for _, rec := range pending {
		s.Upload(context.Background(), rec)
	}
}

// Upload stores one file and removes it from local disk.
func (s *Service) Upload(ctx context.Context, rec models.OutputRecord) error {
	defer s.remove(rec.FilePath)

	logger := logging.WithCamera(s.logger, rec.CameraID)

	if !rec.FileType.IsValid() {
		s.failed.Add(1)
		logger.Error().Str("file_type", rec.FileType.String()).Str("path", rec.FilePath).Msg("Unknown file type, not uploading")
		return nil
	}
	if s.store == nil {
		s.failed.Add(1)
		logger.Error().Err(ErrNoStore).Str("path", rec.FilePath).Msg("Failed to upload file")
		return ErrNoStore
	}

	key := rec.ObjectKey()
	bucket := s.cfg.StorageBucket

	uctx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	logger.Info().Str("path", rec.FilePath).Str("bucket", bucket).Str("key", key).Msg("Uploading file")
	size, err := s.store.Put(uctx, bucket, key, rec.FilePath)
	if err != nil {
		s.failed.Add(1)
		logger.Error().Err(err).Str("path", rec.FilePath).Str("key", key).Msg("Failed to upload file")
		return err
	}
	s.uploaded.Add(1)
	s.bytesUploaded.Add(size)

	event := messaging.RecordingEvent{
		SegmentID: rec.SegmentID,
		CameraID:  rec.CameraID,
		FileType:  rec.FileType,
		Bucket:    bucket,
		ObjectKey: key,
		Size:      size,
		Timestamp: rec.Timestamp,
		WorkerID:  s.cfg.WorkerID,
	}

	if s.index != nil {
		entry, err := s.index.Add(ctx, rec, bucket, key, size)
		if err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Failed to index recording")
		} else {
			event.RecordingID = entry.ID
		}
	}

	if s.events != nil {
		if err := s.events.PublishRecording(event); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Failed to publish recording event")
		}
	}
	return nil
}

func (s *Service) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.removeErrors.Add(1)
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to remove local file")
	}
}

type Stats struct {
	Uploaded      int64 `json:"uploaded"`
	Failed        int64 `json:"failed"`
	BytesUploaded int64 `json:"bytes_uploaded"`
	RemoveErrors  int64 `json:"remove_errors"`
	Pending       int   `json:"pending"`
}

func (s *Service) Stats() Stats {
	return Stats{
		Uploaded:      s.uploaded.Load(),
		Failed:        s.failed.Load(),
		BytesUploaded: s.bytesUploaded.Load(),
		RemoveErrors:  s.removeErrors.Load(),
		Pending:       len(s.in),
	}
}
