package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/models"
)

const t0 = int64(1_700_000_000_000)

type fakeMuxer struct {
	path   string
	pts    []int64
	closes int
}

func (m *fakeMuxer) WriteFrame(data []byte, pts int64) error {
	m.pts = append(m.pts, pts)
	return nil
}

func (m *fakeMuxer) Close() error {
	m.closes++
	return nil
}

type muxerSpy struct {
	muxers []*fakeMuxer
	err    error
}

func (s *muxerSpy) factory(path string, width, height int) (Muxer, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return nil, err
	}
	m := &fakeMuxer{path: path}
	s.muxers = append(s.muxers, m)
	return m, nil
}

type fakeSnapshotter struct {
	saved []string
}

func (f *fakeSnapshotter) Save(path string, frame *models.Frame) error {
	f.saved = append(f.saved, path)
	return nil
}

func frameAt(camera string, ms int64, detect bool) *models.AnnotatedFrame {
	af := &models.AnnotatedFrame{
		Frame: models.NewFrame(camera, make([]byte, 4*4*3), 4, 4, nil, false, ms),
	}
	if detect {
		af.Detections = []models.Detection{{Label: "person", Confidence: 0.8, Box: models.NewRectangle(0, 0, 2, 2)}}
	}
	return af
}

func newTestManager(t *testing.T, spy *muxerSpy, snaps *fakeSnapshotter) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), 10*time.Second, 20*time.Second, spy.factory, snaps, zerolog.Nop())
}

func countTypes(records []models.OutputRecord) (images, videos int) {
	for _, r := range records {
		switch r.FileType {
		case models.FileTypeImage:
			images++
		case models.FileTypeVideo:
			videos++
		}
	}
	return images, videos
}

func TestFramePacer(t *testing.T) {
	p := newFramePacer(10)
	cases := []struct {
		pts  int64
		want int
	}{
		{0, 1},
		{50, 0},
		{200, 2},
		{400, 2},
		{1000, 6},
		{1000, 0},
	}
	for _, c := range cases {
		if got := p.repeats(c.pts); got != c.want {
			t.Errorf("repeats(%d) = %d, want %d", c.pts, got, c.want)
		}
	}
}

func TestIdleSegmentProducesOneVideoAndOneImage(t *testing.T) {
	spy := &muxerSpy{}
	snaps := &fakeSnapshotter{}
	m := newTestManager(t, spy, snaps)

	var records []models.OutputRecord
	for _, pts := range []int64{0, 200, 400, 600, 800} {
		records = append(records, m.Write(frameAt("front", t0+pts, true))...)
		records = append(records, m.CloseEligible(t0+pts)...)
	}
	if _, videos := countTypes(records); videos != 0 {
		t.Fatalf("segment closed early: %+v", records)
	}

	records = append(records, m.CloseEligible(t0+800+11_000)...)

	images, videos := countTypes(records)
	if images != 1 || videos != 1 {
		t.Fatalf("images=%d videos=%d, want 1 and 1", images, videos)
	}
	if len(spy.muxers) != 1 {
		t.Fatalf("muxers opened = %d", len(spy.muxers))
	}
	got := spy.muxers[0].pts
	want := []int64{0, 200, 400, 600, 800}
	if len(got) != len(want) {
		t.Fatalf("pts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pts = %v, want %v", got, want)
		}
	}

	first := time.UnixMilli(t0).UTC()
	for _, r := range records {
		if !r.Timestamp.Equal(first) {
			t.Errorf("%s timestamp = %v, want %v", r.FileType, r.Timestamp, first)
		}
		if r.CameraID != "front" || r.SegmentID == "" {
			t.Errorf("bad record %+v", r)
		}
	}
	if base := filepath.Base(records[0].FilePath); base != models.FileName("front", first, models.FileTypeImage) {
		t.Errorf("image name = %s", base)
	}
	if base := filepath.Base(records[1].FilePath); base != models.FileName("front", first, models.FileTypeVideo) {
		t.Errorf("video name = %s", base)
	}
	if records[0].SegmentID != records[1].SegmentID {
		t.Error("image and video should share the segment id")
	}
	if spy.muxers[0].closes != 1 {
		t.Errorf("muxer closed %d times", spy.muxers[0].closes)
	}
}

func TestFramesWithoutDetectionsDoNotOpenSegments(t *testing.T) {
	spy := &muxerSpy{}
	m := newTestManager(t, spy, &fakeSnapshotter{})

	for i := int64(0); i < 5; i++ {
		if records := m.Write(frameAt("front", t0+i*100, false)); len(records) != 0 {
			t.Fatalf("unexpected records %+v", records)
		}
	}
	if len(spy.muxers) != 0 {
		t.Fatal("a muxer was opened without detections")
	}
	if _, ok := m.Segment("front"); ok {
		t.Fatal("segment should not exist")
	}
}

func TestIdleMeasuredFromLastDetection(t *testing.T) {
	spy := &muxerSpy{}
	m := newTestManager(t, spy, &fakeSnapshotter{})

	m.Write(frameAt("front", t0, true))
	for s := int64(1); s <= 9; s++ {
		m.Write(frameAt("front", t0+s*1000, false))
	}
	if records := m.CloseEligible(t0 + 9_900); len(records) != 0 {
		t.Fatalf("closed before idle timeout: %+v", records)
	}
	if got := len(spy.muxers[0].pts); got != 10 {
		t.Fatalf("frames written = %d, want 10", got)
	}

	records := m.CloseEligible(t0 + 10_000)
	if _, videos := countTypes(records); videos != 1 {
		t.Fatalf("records = %+v", records)
	}
}

func TestSegmentExpiresAtBoundary(t *testing.T) {
	idle, maxDuration := 10*time.Second, 20*time.Second
	cases := []struct {
		name          string
		first, detect int64
		now           int64
		want          bool
	}{
		{"idle one ms short", 0, 0, 9_999, false},
		{"idle exactly elapsed", 0, 0, 10_000, true},
		{"max one ms short", 0, 19_000, 19_999, false},
		{"max exactly elapsed", 0, 19_000, 20_000, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			seg := &Segment{FirstFrameAt: t0 + c.first, LastDetectionAt: t0 + c.detect}
			if got := seg.Expired(t0+c.now, idle, maxDuration); got != c.want {
				t.Errorf("Expired(+%d) = %v, want %v", c.now, got, c.want)
			}
		})
	}
}

func TestMaxDurationRollsOverToNewSegment(t *testing.T) {
	spy := &muxerSpy{}
	snaps := &fakeSnapshotter{}
	m := newTestManager(t, spy, snaps)

	var records []models.OutputRecord
	for ms := int64(0); ms <= 25_000; ms += 100 {
		records = append(records, m.Write(frameAt("front", t0+ms, true))...)
		records = append(records, m.CloseEligible(t0+ms)...)
	}

	images, videos := countTypes(records)
	if images != 2 || videos != 1 {
		t.Fatalf("images=%d videos=%d, want 2 and 1", images, videos)
	}
	seg, ok := m.Segment("front")
	if !ok {
		t.Fatal("second segment should be open")
	}
	if seg.FirstFrameAt != t0+20_100 {
		t.Errorf("second segment starts at +%d ms, want +20100", seg.FirstFrameAt-t0)
	}
	if len(spy.muxers) != 2 {
		t.Fatalf("muxers = %d", len(spy.muxers))
	}
	if spy.muxers[0].path == spy.muxers[1].path {
		t.Error("segments share a file path")
	}

	final := m.CloseAll()
	if _, videos := countTypes(final); videos != 1 {
		t.Fatalf("close all = %+v", final)
	}
	if again := m.CloseAll(); len(again) != 0 {
		t.Fatalf("second close all emitted %+v", again)
	}
}

func TestCamerasHaveIndependentSegments(t *testing.T) {
	spy := &muxerSpy{}
	m := newTestManager(t, spy, &fakeSnapshotter{})

	m.Write(frameAt("front", t0, true))
	m.Write(frameAt("back", t0+5_000, true))

	records := m.CloseEligible(t0 + 10_000)
	if len(records) != 1 || records[0].CameraID != "front" {
		t.Fatalf("records = %+v", records)
	}
	if _, ok := m.Segment("back"); !ok {
		t.Fatal("back segment closed too early")
	}
}

func TestMuxerFailureDropsFrame(t *testing.T) {
	spy := &muxerSpy{err: errors.New("no encoder")}
	snaps := &fakeSnapshotter{}
	m := newTestManager(t, spy, snaps)

	if records := m.Write(frameAt("front", t0, true)); len(records) != 0 {
		t.Fatalf("records = %+v", records)
	}
	if _, ok := m.Segment("front"); ok {
		t.Fatal("segment created despite muxer failure")
	}
	if len(snaps.saved) != 0 {
		t.Fatal("snapshot written despite muxer failure")
	}
	if m.Stats().WriteErrors != 1 {
		t.Fatalf("stats = %+v", m.Stats())
	}
}

func TestSizeChangeClosesSegment(t *testing.T) {
	spy := &muxerSpy{}
	m := newTestManager(t, spy, &fakeSnapshotter{})

	m.Write(frameAt("front", t0, true))
	bigger := &models.AnnotatedFrame{
		Frame:      models.NewFrame("front", make([]byte, 8*8*3), 8, 8, nil, false, t0+100),
		Detections: []models.Detection{{Label: "car", Confidence: 0.9}},
	}
	records := m.Write(bigger)

	images, videos := countTypes(records)
	if images != 1 || videos != 1 {
		t.Fatalf("images=%d videos=%d", images, videos)
	}
	seg, _ := m.Segment("front")
	if seg.Width != 8 {
		t.Fatalf("segment width = %d", seg.Width)
	}
	if !strings.HasSuffix(seg.Path, "-1.mp4") {
		t.Errorf("expected a de-duplicated path, got %s", seg.Path)
	}
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		WorkerID:           "test",
		StageTimeout:       10 * time.Millisecond,
		HandoffWait:        10 * time.Millisecond,
		TeardownWait:       10 * time.Millisecond,
		VideoOutputDir:     dir,
		SegmentIdleTimeout: 10 * time.Second,
		SegmentMaxDuration: 20 * time.Second,
	}
}

func TestServiceEmitsAndFlushesOnTeardown(t *testing.T) {
	spy := &muxerSpy{}
	in := make(chan *models.AnnotatedFrame, 4)
	out := make(chan models.OutputRecord, 4)
	svc := NewService(testConfig(t.TempDir()), in, out, spy.factory, &fakeSnapshotter{})
	now := t0
	svc.now = func() int64 { return now }

	in <- frameAt("front", t0, true)
	if err := svc.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rec := <-out; rec.FileType != models.FileTypeImage {
		t.Fatalf("first record = %+v", rec)
	}

	// an empty tick still closes nothing before the timeout
	now = t0 + 5_000
	svc.Process(context.Background())
	if len(out) != 0 {
		t.Fatal("segment closed early")
	}

	svc.Teardown()
	if rec := <-out; rec.FileType != models.FileTypeVideo {
		t.Fatalf("teardown record = %+v", rec)
	}
	svc.Teardown()
	if len(out) != 0 {
		t.Fatal("second teardown emitted records")
	}
	if st := svc.Stats(); st.RecordsEmitted != 2 || st.Closed != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestServiceCountsDroppedRecords(t *testing.T) {
	spy := &muxerSpy{}
	in := make(chan *models.AnnotatedFrame, 1)
	out := make(chan models.OutputRecord) // nobody reads
	svc := NewService(testConfig(t.TempDir()), in, out, spy.factory, &fakeSnapshotter{})
	svc.now = func() int64 { return t0 }

	in <- frameAt("front", t0, true)
	svc.Process(context.Background())
	if st := svc.Stats(); st.RecordsDropped != 1 {
		t.Fatalf("stats = %+v", st)
	}
}
