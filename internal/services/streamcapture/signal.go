package streamcapture

import (
	"context"
	"sync"
	"time"
)

// MotionSignal is a boolean shared between a motion sensor (writer) and a
// capture loop (reader). Waiters are woken when it turns active.
type MotionSignal struct {
	mu      sync.Mutex
	active  bool
	changed chan struct{} // closed and replaced on every transition
	since   time.Time
}

func NewMotionSignal() *MotionSignal {
	return &MotionSignal{changed: make(chan struct{}), since: time.Now()}
}

// Set updates the signal. Setting the current value again is a no-op.
func (m *MotionSignal) Set(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == active {
		return
	}
	m.active = active
	m.since = time.Now()
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *MotionSignal) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Since returns when the signal last changed.
func (m *MotionSignal) Since() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.since
}

// Wait blocks until the signal is active, timeout elapses or ctx is done.
// It returns the state observed on return.
func (m *MotionSignal) Wait(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m.mu.Lock()
		active, changed := m.active, m.changed
		m.mu.Unlock()

		if active {
			return true
		}

		select {
		case <-changed:
		case <-timer.C:
			return m.Active()
		case <-ctx.Done():
			return false
		}
	}
}
