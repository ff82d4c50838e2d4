package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nvr-worker-go/internal/logging"
	"nvr-worker-go/internal/models"
)

// Segment is one open video file for a camera.
type Segment struct {
	ID       string
	CameraID string
	Path     string
	Width    int
	Height   int

	// FirstFrameAt and LastDetectionAt are unix milliseconds.
	FirstFrameAt    int64
	LastDetectionAt int64
	Frames          int64

	muxer  Muxer
	logger zerolog.Logger
	closed bool
}

// Timestamp is the UTC time of the first frame.
func (s *Segment) Timestamp() time.Time {
	return time.UnixMilli(s.FirstFrameAt).UTC()
}

func (s *Segment) write(frame *models.Frame) error {
	if err := s.muxer.WriteFrame(frame.Data, frame.CreatedAt-s.FirstFrameAt); err != nil {
		return err
	}
	s.Frames++
	return nil
}

// Expired reports whether the segment has gone idle or run too long at now.
func (s *Segment) Expired(now int64, idle, maxDuration time.Duration) bool {
	return now-s.LastDetectionAt >= idle.Milliseconds() ||
		now-s.FirstFrameAt >= maxDuration.Milliseconds()
}

// close finalises the file once; later calls report false.
func (s *Segment) close() (bool, error) {
	if s.closed {
		return false, nil
	}
	s.closed = true
	return true, s.muxer.Close()
}

func (s *Segment) record(ft models.FileType, path string) models.OutputRecord {
	return models.OutputRecord{
		SegmentID: s.ID,
		CameraID:  s.CameraID,
		FileType:  ft,
		FilePath:  path,
		Timestamp: s.Timestamp(),
	}
}

// Manager owns the open segments, at most one per camera. It is driven by a
// single goroutine and does no locking of its own; only the counters are
// safe to read concurrently.
type Manager struct {
	outputDir   string
	idle        time.Duration
	maxDuration time.Duration
	newMuxer    MuxerFactory
	snapshots   Snapshotter
	logger      zerolog.Logger

	segments map[string]*Segment

	opened      atomic.Int64
	closed      atomic.Int64
	written     atomic.Int64
	writeErrors atomic.Int64
	active      atomic.Int64
}

func NewManager(outputDir string, idle, maxDuration time.Duration, newMuxer MuxerFactory, snapshots Snapshotter, logger zerolog.Logger) *Manager {
	return &Manager{
		outputDir:   outputDir,
		idle:        idle,
		maxDuration: maxDuration,
		newMuxer:    newMuxer,
		snapshots:   snapshots,
		logger:      logger,
		segments:    make(map[string]*Segment),
	}
}

// Write appends an annotated frame to its camera's segment, opening one if
// the frame carries detections. Frames without detections and without an
// open segment are ignored. It returns the records of files finished by
// this call.
func (m *Manager) Write(af *models.AnnotatedFrame) []models.OutputRecord {
	frame := af.Frame
	var records []models.OutputRecord

	seg, ok := m.segments[frame.CameraID]
	if ok && (seg.Width != frame.Width || seg.Height != frame.Height) {
		m.logger.Info().
			Str("camera_id", frame.CameraID).
			Int("width", frame.Width).
			Int("height", frame.Height).
			Msg("Frame size changed, closing segment")
		records = append(records, m.close(seg)...)
		ok = false
	}

	if !ok {
		if !af.HasDetections() {
			return records
		}
		var snapshot *models.OutputRecord
		var err error
		seg, snapshot, err = m.open(frame)
		if err != nil {
			m.writeErrors.Add(1)
			m.logger.Error().Err(err).Str("camera_id", frame.CameraID).Msg("Failed to open segment, frame dropped")
			return records
		}
		if snapshot != nil {
			records = append(records, *snapshot)
		}
	}

	if af.HasDetections() {
		seg.LastDetectionAt = frame.CreatedAt
	}
	if err := seg.write(frame); err != nil {
		m.writeErrors.Add(1)
		seg.logger.Warn().Err(err).Msg("Failed to write frame")
		return records
	}
	m.written.Add(1)
	return records
}

// CloseEligible closes every segment that is idle or over its maximum
// duration at now (unix ms).
func (m *Manager) CloseEligible(now int64) []models.OutputRecord {
	var records []models.OutputRecord
	for _, seg := range m.segments {
		if seg.Expired(now, m.idle, m.maxDuration) {
			records = append(records, m.close(seg)...)
		}
	}
	return records
}

// CloseAll closes every open segment. Calling it again is a no-op.
func (m *Manager) CloseAll() []models.OutputRecord {
	var records []models.OutputRecord
	for _, seg := range m.segments {
		records = append(records, m.close(seg)...)
	}
	return records
}

// Segment returns the open segment of a camera, if any.
func (m *Manager) Segment(cameraID string) (*Segment, bool) {
	seg, ok := m.segments[cameraID]
	return seg, ok
}

func (m *Manager) open(frame *models.Frame) (*Segment, *models.OutputRecord, error) {
	if err := os.MkdirAll(m.outputDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output dir: %w", err)
	}

	ts := frame.Time()
	videoPath := uniquePath(filepath.Join(m.outputDir, models.FileName(frame.CameraID, ts, models.FileTypeVideo)))
	muxer, err := m.newMuxer(videoPath, frame.Width, frame.Height)
	if err != nil {
		return nil, nil, err
	}

	id := uuid.NewString()
	seg := &Segment{
		ID:              id,
		CameraID:        frame.CameraID,
		Path:            videoPath,
		Width:           frame.Width,
		Height:          frame.Height,
		FirstFrameAt:    frame.CreatedAt,
		LastDetectionAt: frame.CreatedAt,
		muxer:           muxer,
		logger:          logging.WithSegment(logging.WithCamera(m.logger, frame.CameraID), id, videoPath),
	}
	m.segments[frame.CameraID] = seg
	m.opened.Add(1)
	m.active.Store(int64(len(m.segments)))

	seg.logger.Info().Msg("Segment opened")

	imagePath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "." + models.FileTypeImage.Extension()
	if err := m.snapshots.Save(imagePath, frame); err != nil {
		seg.logger.Warn().Err(err).Str("snapshot", imagePath).Msg("Failed to save snapshot")
		return seg, nil, nil
	}
	rec := seg.record(models.FileTypeImage, imagePath)
	return seg, &rec, nil
}

func (m *Manager) close(seg *Segment) []models.OutputRecord {
	delete(m.segments, seg.CameraID)
	m.active.Store(int64(len(m.segments)))

	first, err := seg.close()
	if !first {
		return nil
	}
	m.closed.Add(1)

	event := seg.logger.Info()
	if err != nil {
		// the file is still handed on so it does not linger on disk
		event = seg.logger.Error().Err(err)
	}
	event.Int64("frames", seg.Frames).Msg("Segment closed")

	return []models.OutputRecord{seg.record(models.FileTypeVideo, seg.Path)}
}

type ManagerStats struct {
	Active        int64 `json:"active_segments"`
	Opened        int64 `json:"segments_opened"`
	Closed        int64 `json:"segments_closed"`
	FramesWritten int64 `json:"frames_written"`
	WriteErrors   int64 `json:"write_errors"`
}

func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		Active:        m.active.Load(),
		Opened:        m.opened.Load(),
		Closed:        m.closed.Load(),
		FramesWritten: m.written.Load(),
		WriteErrors:   m.writeErrors.Load(),
	}
}

// uniquePath appends -1, -2, ... before the extension while path exists.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
