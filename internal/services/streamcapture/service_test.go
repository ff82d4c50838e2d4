package streamcapture

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/models"
)

type fakeTransport struct {
	frames   []gocv.Mat
	next     int
	grabs    int
	reads    int
	released bool
}

func (f *fakeTransport) Grab() bool {
	if f.next >= len(f.frames) {
		return false
	}
	f.next++
	f.grabs++
	return true
}

func (f *fakeTransport) Read() (gocv.Mat, error) {
	if f.next >= len(f.frames) {
		return gocv.NewMat(), ErrTransport
	}
	f.next++
	f.reads++
	return f.frames[f.next-1].Clone(), nil
}

func (f *fakeTransport) Release() error {
	f.released = true
	for _, m := range f.frames {
		m.Close()
	}
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	frames  []*models.Frame
	pending int // Contains reports true for this many calls
	putErr  error
}

func (s *fakeSink) Put(frame *models.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *fakeSink) Contains(string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending > 0 {
		s.pending--
		return true
	}
	return false
}

func testConfig() *config.Config {
	return &config.Config{
		WorkerID:         "test",
		StageTimeout:     20 * time.Millisecond,
		CaptureWarmup:    0,
		CaptureCooldown:  10 * time.Millisecond,
		MotionMaxRegions: 2,
		MotionMinAreaPct: 0.0005,
		MotionMaxAreaPct: 0.2,
	}
}

func testFeed() *config.CameraFeedConfig {
	return &config.CameraFeedConfig{ID: "front", Host: "10.0.0.2", Port: 554, Path: "/stream"}
}

func TestProcessIdleWithoutMotion(t *testing.T) {
	opened := false
	svc := NewService(testConfig(), testFeed(), &fakeSink{}, NewMotionSignal(), func(string) (Transport, error) {
		opened = true
		return nil, errors.New("unexpected")
	})

	start := time.Now()
	if err := svc.Process(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if opened {
		t.Fatal("stream opened without motion")
	}
	if time.Since(start) > time.Second {
		t.Fatal("idle step did not return promptly")
	}
}

func TestProcessPushesFramesWithRegions(t *testing.T) {
	transport := &fakeTransport{frames: []gocv.Mat{
		blankFrame(640, 480),
		frameWithSquare(640, 480, image.Rect(200, 150, 300, 250)),
		frameWithSquare(640, 480, image.Rect(200, 150, 300, 250)),
	}}
	sink := &fakeSink{}
	signal := NewMotionSignal()
	signal.Set(true)

	var openedURL string
	svc := NewService(testConfig(), testFeed(), sink, signal, func(url string) (Transport, error) {
		openedURL = url
		return transport, nil
	})
	svc.now = func() int64 { return 1000 }

	err := svc.Process(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want a transport failure once frames run out", err)
	}
	if !transport.released {
		t.Fatal("transport not released")
	}
	if openedURL != "rtsp://10.0.0.2:554/stream" {
		t.Fatalf("opened %q", openedURL)
	}

	if len(sink.frames) != 2 {
		t.Fatalf("pushed %d frames, want 2", len(sink.frames))
	}

	moving := sink.frames[0]
	if !moving.Detailed || len(moving.Regions) != 1 {
		t.Fatalf("first frame detailed=%v regions=%+v, want one motion region", moving.Detailed, moving.Regions)
	}
	if moving.Width != 640 || moving.Height != 480 || len(moving.Data) != 640*480*3 {
		t.Fatalf("bad frame geometry %dx%d len=%d", moving.Width, moving.Height, len(moving.Data))
	}
	if moving.CameraID != "front" || moving.CreatedAt != 1000 {
		t.Fatalf("bad frame metadata %+v", moving)
	}

	still := sink.frames[1]
	if still.Detailed || len(still.Regions) != 2 {
		t.Fatalf("second frame detailed=%v regions=%+v, want split fallback", still.Detailed, still.Regions)
	}

	stats := svc.Stats()
	if stats.FramesCaptured != 3 || stats.FramesPushed != 2 || stats.Errors != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestProcessOpenFailureCoolsDown(t *testing.T) {
	signal := NewMotionSignal()
	signal.Set(true)
	cfg := testConfig()
	cfg.CaptureCooldown = 50 * time.Millisecond

	svc := NewService(cfg, testFeed(), &fakeSink{}, signal, func(string) (Transport, error) {
		return nil, ErrTransport
	})

	start := time.Now()
	err := svc.Process(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("returned before the cooldown elapsed")
	}
}

func TestProcessSkipsDecodeWhilePending(t *testing.T) {
	transport := &fakeTransport{frames: []gocv.Mat{
		blankFrame(320, 240),
		blankFrame(320, 240),
		blankFrame(320, 240),
		blankFrame(320, 240),
		blankFrame(320, 240),
	}}
	sink := &fakeSink{pending: 2}
	signal := NewMotionSignal()
	signal.Set(true)

	svc := NewService(testConfig(), testFeed(), sink, signal, func(string) (Transport, error) {
		return transport, nil
	})

	if err := svc.Process(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want a transport failure once frames run out", err)
	}

	if transport.grabs != 2 {
		t.Errorf("grabs = %d, want 2", transport.grabs)
	}
	if transport.reads != 3 {
		t.Errorf("reads = %d, want 3 (no decode while a frame is pending)", transport.reads)
	}

	stats := svc.Stats()
	if stats.FramesSkipped != 2 || stats.FramesCaptured != 3 || stats.FramesPushed != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestProcessGrabFailureWhilePending(t *testing.T) {
	transport := &fakeTransport{}
	sink := &fakeSink{pending: 10}
	signal := NewMotionSignal()
	signal.Set(true)

	svc := NewService(testConfig(), testFeed(), sink, signal, func(string) (Transport, error) {
		return transport, nil
	})

	if err := svc.Process(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want a transport failure", err)
	}
	if transport.reads != 0 {
		t.Fatalf("reads = %d, want 0", transport.reads)
	}
	if !transport.released {
		t.Fatal("transport not released")
	}
}

func TestProcessCountsRejectedFrames(t *testing.T) {
	transport := &fakeTransport{frames: []gocv.Mat{
		blankFrame(320, 240),
		blankFrame(320, 240),
		blankFrame(320, 240),
	}}
	sink := &fakeSink{putErr: errors.New("slot full")}
	signal := NewMotionSignal()
	signal.Set(true)

	svc := NewService(testConfig(), testFeed(), sink, signal, func(string) (Transport, error) {
		return transport, nil
	})

	if err := svc.Process(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v", err)
	}

	stats := svc.Stats()
	if stats.FramesDropped != 2 || stats.FramesPushed != 0 {
		t.Fatalf("stats = %+v, want 2 dropped and none pushed", stats)
	}
}
