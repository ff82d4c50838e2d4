package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"nvr-worker-go/internal/models"
)

func openTest(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func record(camera string, ft models.FileType, ts time.Time) models.OutputRecord {
	return models.OutputRecord{
		SegmentID: "seg-" + camera,
		CameraID:  camera,
		FileType:  ft,
		FilePath:  "/tmp/" + models.FileName(camera, ts, ft),
		Timestamp: ts,
	}
}

func TestAddAndGet(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	rec := record("front", models.FileTypeVideo, ts)

	added, err := c.Add(ctx, rec, "nvr", rec.ObjectKey(), 1234)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := c.Get(ctx, added.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CameraID != "front" || got.FileType != "video" || got.Size != 1234 {
		t.Fatalf("got %+v", got)
	}
	if got.ObjectKey != "video/2024/03/05/front_2024-03-05T100000.mp4" {
		t.Fatalf("object key = %s", got.ObjectKey)
	}
	if !got.Timestamp.Equal(ts) {
		t.Fatalf("timestamp = %v", got.Timestamp)
	}
}

func TestGetMissing(t *testing.T) {
	c := openTest(t)
	if _, err := c.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListFilters(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	for i, cam := range []string{"front", "back", "front"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		for _, ft := range []models.FileType{models.FileTypeImage, models.FileTypeVideo} {
			rec := record(cam, ft, ts)
			if _, err := c.Add(ctx, rec, "nvr", rec.ObjectKey(), 1); err != nil {
				t.Fatal(err)
			}
		}
	}

	all, err := c.List(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 {
		t.Fatalf("all = %d", len(all))
	}
	if !all[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("newest first expected, got %v", all[0].Timestamp)
	}

	front, _ := c.List(ctx, Filter{CameraID: "front", FileType: "video"})
	if len(front) != 2 {
		t.Fatalf("front videos = %d", len(front))
	}

	window, _ := c.List(ctx, Filter{Since: base.Add(30 * time.Second), Until: base.Add(90 * time.Second)})
	if len(window) != 2 || window[0].CameraID != "back" {
		t.Fatalf("window = %+v", window)
	}

	limited, _ := c.List(ctx, Filter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("limit = %d", len(limited))
	}

	if n, _ := c.Count(ctx); n != 6 {
		t.Fatalf("count = %d", n)
	}
}
