package multiplexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nvr-worker-go/internal/models"
)

func frame(camera string, ts int64) *models.Frame {
	return models.NewFrame(camera, nil, 0, 0, nil, false, ts)
}

func TestPutRejectsSecondFrameForSameCamera(t *testing.T) {
	m := New()

	if err := m.Put(frame("a", 1)); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := m.Put(frame("a", 2)); !errors.Is(err, ErrFull) {
		t.Fatalf("second put err = %v, want ErrFull", err)
	}
	if !m.Contains("a") || m.Contains("b") {
		t.Fatal("contains mismatch")
	}

	got, err := m.Get(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CreatedAt != 1 {
		t.Fatalf("got frame %d, want the first one", got.CreatedAt)
	}
	if m.Contains("a") {
		t.Fatal("slot should be free after get")
	}
	if err := m.Put(frame("a", 3)); err != nil {
		t.Fatalf("put after get: %v", err)
	}
}

func TestGetTimesOutWhenEmpty(t *testing.T) {
	m := New()

	start := time.Now()
	_, err := m.Get(context.Background(), 30*time.Millisecond)
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
	elapsed := time.Since(start)
	if elapsed < 25*time.Millisecond {
		t.Fatalf("returned after %v, before the timeout", elapsed)
	}
	if elapsed > 30*time.Millisecond+50*time.Millisecond {
		t.Fatalf("returned after %v, well past the timeout", elapsed)
	}
}

func TestGetHonoursContext(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Get(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestGetWakesOnPut(t *testing.T) {
	m := New()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = m.Put(frame("a", 1))
	}()

	got, err := m.Get(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CameraID != "a" {
		t.Fatalf("camera = %s", got.CameraID)
	}
}

func TestOldestCameraFirst(t *testing.T) {
	m := New()
	for i, cam := range []string{"c", "a", "b"} {
		if err := m.Put(frame(cam, int64(i))); err != nil {
			t.Fatal(err)
		}
	}

	var order []string
	for i := 0; i < 3; i++ {
		f, err := m.Get(context.Background(), 10*time.Millisecond)
		if err != nil {
			t.Fatal(err)
		}
		order = append(order, f.CameraID)
	}
	if order[0] != "c" || order[1] != "a" || order[2] != "b" {
		t.Fatalf("order = %v, want arrival order", order)
	}
}

func TestNoCameraStarvesAndNoDuplicates(t *testing.T) {
	m := New()
	cameras := []string{"a", "b", "c", "d"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, cam := range cameras {
		wg.Add(1)
		go func(cam string) {
			defer wg.Done()
			var seq int64
			for ctx.Err() == nil {
				if m.Put(frame(cam, seq)) == nil {
					seq++
				}
				time.Sleep(time.Millisecond)
			}
		}(cam)
	}

	seen := map[string]int64{}
	counts := map[string]int{}
	for i := 0; i < 400; i++ {
		f, err := m.Get(ctx, time.Second)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if last, ok := seen[f.CameraID]; ok && f.CreatedAt <= last {
			t.Fatalf("camera %s delivered frame %d after %d", f.CameraID, f.CreatedAt, last)
		}
		seen[f.CameraID] = f.CreatedAt
		counts[f.CameraID]++
	}
	cancel()
	wg.Wait()

	for _, cam := range cameras {
		if counts[cam] < 20 {
			t.Fatalf("camera %s got %d of 400 deliveries: %v", cam, counts[cam], counts)
		}
	}
}
