package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/models"
)

// RecordingEvent announces a file that reached object storage.
type RecordingEvent struct {
	RecordingID string          `json:"recording_id,omitempty"`
	SegmentID   string          `json:"segment_id"`
	CameraID    string          `json:"camera_id"`
	FileType    models.FileType `json:"file_type"`
	Bucket      string          `json:"bucket"`
	ObjectKey   string          `json:"object_key"`
	Size        int64           `json:"size"`
	Timestamp   time.Time       `json:"timestamp"`
	WorkerID    string          `json:"worker_id"`
}

type Service struct {
	conn *nats.Conn
	cfg  *config.Config
}

func NewService(cfg *config.Config) (*Service, error) {
	opts := []nats.Option{
		nats.Name(cfg.WorkerID),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", cfg.NatsURL).Msg("NATS connection established")

	return &Service{
		conn: conn,
		cfg:  cfg,
	}, nil
}

// RecordingSubject is <prefix>.<camera>.<file type>.
func RecordingSubject(prefix, cameraID string, ft models.FileType) string {
	return prefix + "." + cameraID + "." + ft.String()
}

func (s *Service) PublishRecording(event RecordingEvent) error {
	if event.WorkerID == "" {
		event.WorkerID = s.cfg.WorkerID
	}
	return s.Publish(RecordingSubject(s.cfg.RecordingsSubject, event.CameraID, event.FileType), event)
}

func (s *Service) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return s.conn.Publish(subject, payload)
}

func (s *Service) IsConnected() bool {
	return s != nil && s.conn != nil && s.conn.IsConnected()
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s == nil || s.conn == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- s.conn.Drain()
	}()

	timeout := s.cfg.NatsDrainTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	// Try graceful drain with timeout, fallback to immediate close
	select {
	case err := <-done:
		if err != nil {
			log.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
			s.conn.Close()
		}
	case <-time.After(timeout):
		log.Warn().Msg("NATS drain timed out, closing immediately")
		s.conn.Close()
	}
	return nil
}
