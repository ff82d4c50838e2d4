package streamcapture

import (
	"context"
	"testing"
	"time"
)

func TestMotionSignalWait(t *testing.T) {
	s := NewMotionSignal()

	if s.Wait(context.Background(), 20*time.Millisecond) {
		t.Fatal("inactive signal reported active")
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Set(true)
	}()
	if !s.Wait(context.Background(), time.Second) {
		t.Fatal("wait did not observe activation")
	}

	// idempotent
	before := s.Since()
	s.Set(true)
	if !s.Since().Equal(before) {
		t.Fatal("setting the same value changed the transition time")
	}

	s.Set(false)
	if s.Active() {
		t.Fatal("signal still active")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if s.Wait(ctx, time.Second) {
		t.Fatal("cancelled wait returned active")
	}
}
