package multiplexer

import (
	"context"
	"errors"
	"sync"
	"time"

	"nvr-worker-go/internal/models"
)

var (
	// ErrFull is returned by Put when the camera already has a pending frame.
	ErrFull = errors.New("multiplexer: camera slot full")
	// ErrEmpty is returned by Get when no frame arrived before the timeout.
	ErrEmpty = errors.New("multiplexer: no frame available")
)

// FeedMultiplexer holds at most one pending frame per camera and hands
// them to a single consumer oldest first, so a fast camera cannot starve
// the others.
type FeedMultiplexer struct {
	mu      sync.Mutex
	pending map[string]*models.Frame
	order   []string      // camera ids in arrival order
	notify  chan struct{} // capacity 1, signalled on Put

	puts      int64
	rejected  int64
	delivered int64
}

func New() *FeedMultiplexer {
	return &FeedMultiplexer{
		pending: make(map[string]*models.Frame),
		notify:  make(chan struct{}, 1),
	}
}

// Put stores the frame unless its camera already has one pending.
func (m *FeedMultiplexer) Put(frame *models.Frame) error {
	m.mu.Lock()
	if _, exists := m.pending[frame.CameraID]; exists {
		m.rejected++
		m.mu.Unlock()
		return ErrFull
	}
	m.pending[frame.CameraID] = frame
	m.order = append(m.order, frame.CameraID)
	m.puts++
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Get removes and returns the oldest pending frame, waiting up to timeout.
func (m *FeedMultiplexer) Get(ctx context.Context, timeout time.Duration) (*models.Frame, error) {
	if frame := m.pop(); frame != nil {
		return frame, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-m.notify:
			if frame := m.pop(); frame != nil {
				return frame, nil
			}
		case <-timer.C:
			// a Put may have raced with the timer
			if frame := m.pop(); frame != nil {
				return frame, nil
			}
			return nil, ErrEmpty
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *FeedMultiplexer) pop() *models.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.order) == 0 {
		return nil
	}
	cameraID := m.order[0]
	m.order = m.order[1:]
	frame := m.pending[cameraID]
	delete(m.pending, cameraID)
	m.delivered++

	if len(m.order) > 0 {
		// keep the consumer awake for the remaining frames
		select {
		case m.notify <- struct{}{}:
		default:
		}
	}
	return frame
}

// Contains reports whether the camera has a frame waiting.
func (m *FeedMultiplexer) Contains(cameraID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.pending[cameraID]
	return exists
}

func (m *FeedMultiplexer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

type Stats struct {
	Pending   int   `json:"pending"`
	Puts      int64 `json:"puts"`
	Rejected  int64 `json:"rejected"`
	Delivered int64 `json:"delivered"`
}

func (m *FeedMultiplexer) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Pending:   len(m.pending),
		Puts:      m.puts,
		Rejected:  m.rejected,
		Delivered: m.delivered,
	}
}
