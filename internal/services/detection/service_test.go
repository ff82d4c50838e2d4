package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/models"
	"nvr-worker-go/internal/services/multiplexer"
)

type fakeDetector struct {
	calls   int
	sizes   [][2]int
	results [][]models.Detection
	err     error
}

func (f *fakeDetector) Name() string { return "fake" }
func (f *fakeDetector) Load() error  { return nil }
func (f *fakeDetector) Close() error { return nil }

func (f *fakeDetector) Detect(img gocv.Mat) ([]models.Detection, error) {
	f.sizes = append(f.sizes, [2]int{img.Cols(), img.Rows()})
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	f.calls++
	if i < len(f.results) {
		return f.results[i], nil
	}
	return nil, nil
}

type fakeSource struct {
	frames []*models.Frame
}

func (s *fakeSource) Get(ctx context.Context, timeout time.Duration) (*models.Frame, error) {
	if len(s.frames) == 0 {
		return nil, multiplexer.ErrEmpty
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func testConfig() *config.Config {
	return &config.Config{
		WorkerID:            "test",
		StageTimeout:        10 * time.Millisecond,
		HandoffWait:         10 * time.Millisecond,
		ConfidenceThreshold: 0.5,
		MergeOverlapRatio:   0.65,
		AllowedClasses:      []string{"person", "car", "cat"},
	}
}

func testFrame(regions []models.Rectangle, detailed bool) *models.Frame {
	w, h := 640, 480
	return models.NewFrame("front", make([]byte, w*h*3), w, h, regions, detailed, 1000)
}

func TestProcessForwardsMergedDetections(t *testing.T) {
	detector := &fakeDetector{results: [][]models.Detection{
		{
			det("person", 0.9, 10, 10, 110, 210),
			det("person", 0.6, 12, 12, 110, 210), // duplicate box, merged
			det("dog", 0.95, 0, 0, 50, 50),       // not allowed
			det("car", 0.3, 0, 0, 50, 50),        // below threshold
		},
		{
			det("car", 0.8, 0, 0, 100, 100),
		},
	}}
	regions := []models.Rectangle{
		models.NewRectangle(0, 0, 300, 300),
		models.NewRectangle(340, 180, 640, 480),
	}
	src := &fakeSource{frames: []*models.Frame{testFrame(regions, true)}}
	out := make(chan *models.AnnotatedFrame, 1)

	svc := NewService(testConfig(), src, out, detector)
	if err := svc.Process(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}

	if detector.calls != 2 {
		t.Fatalf("detector called %d times, want once per region", detector.calls)
	}
	if detector.sizes[1] != [2]int{300, 300} {
		t.Fatalf("second crop = %v", detector.sizes[1])
	}

	af := <-out
	if !af.HasDetections() || len(af.Detections) != 2 {
		t.Fatalf("detections = %+v, want person and car", af.Detections)
	}
	if af.Detections[0].Label != "person" || af.Detections[0].Confidence != 0.9 {
		t.Fatalf("first detection = %+v", af.Detections[0])
	}
	car := af.Detections[1]
	if car.Box != models.NewRectangle(340, 180, 440, 280) {
		t.Fatalf("car box = %+v, want it in frame coordinates", car.Box)
	}
}

func TestProcessForwardsFramesWithoutDetections(t *testing.T) {
	src := &fakeSource{frames: []*models.Frame{testFrame([]models.Rectangle{models.NewRectangle(0, 0, 480, 480)}, false)}}
	out := make(chan *models.AnnotatedFrame, 1)

	svc := NewService(testConfig(), src, out, &fakeDetector{})
	if err := svc.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case af := <-out:
		if af.HasDetections() {
			t.Fatal("unexpected detections")
		}
	default:
		t.Fatal("frame without detections was not forwarded")
	}
}

func TestProcessEmptyIsNoop(t *testing.T) {
	out := make(chan *models.AnnotatedFrame, 1)
	svc := NewService(testConfig(), &fakeSource{}, out, &fakeDetector{})
	if err := svc.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatal("something was forwarded for an empty multiplexer")
	}
}

func TestProcessDetectorFailureDropsFrame(t *testing.T) {
	src := &fakeSource{frames: []*models.Frame{testFrame([]models.Rectangle{models.NewRectangle(0, 0, 480, 480)}, false)}}
	out := make(chan *models.AnnotatedFrame, 1)

	svc := NewService(testConfig(), src, out, &fakeDetector{err: errors.New("inference failed")})
	if err := svc.Process(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if len(out) != 0 {
		t.Fatal("failed frame was forwarded")
	}
	if svc.Stats().Failed != 1 {
		t.Fatalf("stats = %+v", svc.Stats())
	}
}

func TestProcessFullQueueDrops(t *testing.T) {
	src := &fakeSource{frames: []*models.Frame{testFrame([]models.Rectangle{models.NewRectangle(0, 0, 480, 480)}, false)}}
	out := make(chan *models.AnnotatedFrame, 1)
	out <- &models.AnnotatedFrame{}

	svc := NewService(testConfig(), src, out, &fakeDetector{})
	if err := svc.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	if svc.Stats().Dropped != 1 {
		t.Fatalf("stats = %+v", svc.Stats())
	}
}
