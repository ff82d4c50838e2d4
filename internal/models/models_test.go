package models

import (
	"testing"
	"time"
)

func TestRectangleGeometry(t *testing.T) {
	a := NewRectangle(0, 0, 100, 100)
	b := NewRectangle(50, 50, 150, 150)

	if got := a.Area(); got != 10000 {
		t.Fatalf("area = %d, want 10000", got)
	}
	if got := a.OverlapArea(b); got != 2500 {
		t.Fatalf("overlap = %d, want 2500", got)
	}
	if got := a.OverlapArea(NewRectangle(200, 200, 300, 300)); got != 0 {
		t.Fatalf("disjoint overlap = %d, want 0", got)
	}
	if got := a.Union(b); got != NewRectangle(0, 0, 150, 150) {
		t.Fatalf("union = %+v", got)
	}
	if got := b.Offset(10, -10); got != NewRectangle(60, 40, 160, 140) {
		t.Fatalf("offset = %+v", got)
	}
	if !a.Contains(NewRectangle(10, 10, 20, 20)) || a.Contains(b) {
		t.Fatal("contains mismatch")
	}
}

func TestGroupRectangles(t *testing.T) {
	rects := []Rectangle{
		NewRectangle(0, 0, 100, 100),
		NewRectangle(10, 10, 100, 100),   // nested in the first
		NewRectangle(500, 500, 600, 600), // alone
		NewRectangle(90, 90, 190, 190),   // touches the first only slightly
	}

	groups := GroupRectangles(rects, 0.65)
	if len(groups) != 3 {
		t.Fatalf("groups = %v, want 3 groups", groups)
	}

	merged := MergeRectangles(rects, 0.65)
	found := false
	for _, r := range merged {
		if r == NewRectangle(0, 0, 100, 100) {
			found = true
		}
	}
	if !found {
		t.Fatalf("merged = %v, want the nested pair folded into (0,0,100,100)", merged)
	}
}

func TestOutputRecordObjectKey(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 5, 1, 0, time.UTC)
	record := OutputRecord{
		CameraID:  "front",
		FileType:  FileTypeVideo,
		FilePath:  "/tmp/recordings/" + FileName("front", ts, FileTypeVideo),
		Timestamp: ts,
	}

	if got, want := record.ObjectKey(), "video/2024/03/07/front_2024-03-07T090501.mp4"; got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
	if got, want := FileName("front", ts, FileTypeImage), "front_2024-03-07T090501.jpeg"; got != want {
		t.Fatalf("image name = %q, want %q", got, want)
	}
}
