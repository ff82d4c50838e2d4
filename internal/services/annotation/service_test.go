package annotation

import (
	"bytes"
	"context"
	"testing"
	"time"

	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/models"
)

func testConfig(showInfo bool) *config.Config {
	return &config.Config{
		WorkerID:     "test",
		StageTimeout: 10 * time.Millisecond,
		HandoffWait:  10 * time.Millisecond,
		OverlayColor: "#00FF00",
		ShowCameraID: showInfo,
		ShowTime:     showInfo,
	}
}

func blankFrame() *models.Frame {
	w, h := 320, 240
	return models.NewFrame("front", make([]byte, w*h*3), w, h, nil, false, 1000)
}

func pixel(f *models.Frame, x, y int) []byte {
	i := (y*f.Width + x) * 3
	return f.Data[i : i+3]
}

func TestProcessDrawsDetections(t *testing.T) {
	in := make(chan *models.AnnotatedFrame, 1)
	out := make(chan *models.AnnotatedFrame, 1)
	svc := NewService(testConfig(false), in, out)

	frame := blankFrame()
	in <- &models.AnnotatedFrame{
		Frame:      frame,
		Detections: []models.Detection{{Label: "person", Confidence: 0.9, Box: models.NewRectangle(100, 100, 200, 200)}},
	}

	if err := svc.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := <-out
	if got.Frame != frame {
		t.Fatal("a different frame was forwarded")
	}
	if bytes.Equal(pixel(frame, 100, 150), []byte{0, 0, 0}) {
		t.Fatal("box edge was not drawn")
	}
	if !bytes.Equal(pixel(frame, 150, 150), []byte{0, 0, 0}) {
		t.Fatal("box interior should be untouched")
	}
	if svc.Stats().Annotated != 1 {
		t.Fatalf("stats = %+v", svc.Stats())
	}
	if latest, ok := svc.LatestFrame("front"); !ok || latest != frame {
		t.Fatal("latest frame not tracked")
	}
	if _, ok := svc.LatestFrame("back"); ok {
		t.Fatal("unexpected latest frame for unknown camera")
	}
}

func TestProcessPassesFramesWithoutDetections(t *testing.T) {
	in := make(chan *models.AnnotatedFrame, 1)
	out := make(chan *models.AnnotatedFrame, 1)
	svc := NewService(testConfig(false), in, out)

	frame := blankFrame()
	in <- &models.AnnotatedFrame{Frame: frame}

	if err := svc.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-out
	if !bytes.Equal(frame.Data, make([]byte, len(frame.Data))) {
		t.Fatal("frame without detections was modified")
	}
}

func TestProcessIdle(t *testing.T) {
	out := make(chan *models.AnnotatedFrame, 1)
	svc := NewService(testConfig(true), make(chan *models.AnnotatedFrame), out)
	if err := svc.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatal("forwarded without input")
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := parseHexColor("#FF8000")
	if err != nil {
		t.Fatal(err)
	}
	if c.R != 0xFF || c.G != 0x80 || c.B != 0 || c.A != 255 {
		t.Fatalf("color = %+v", c)
	}
	if _, err := parseHexColor("red"); err == nil {
		t.Fatal("accepted a color name")
	}
}
