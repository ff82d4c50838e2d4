package worker

import (
	"context"
	"time"
)

// Send hands v to ch, waiting at most wait for room. It returns false if
// the item was dropped.
func Send[T any](ctx context.Context, ch chan<- T, v T, wait time.Duration) bool {
	select {
	case ch <- v:
		return true
	default:
	}
	if wait <= 0 {
		return false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- v:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Receive waits up to timeout for an item from ch. ok is false on timeout,
// cancellation or a closed channel.
func Receive[T any](ctx context.Context, ch <-chan T, timeout time.Duration) (v T, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v, ok = <-ch:
		return v, ok
	case <-timer.C:
		return v, false
	case <-ctx.Done():
		return v, false
	}
}

// Drain returns every item currently buffered in ch without blocking.
func Drain[T any](ch <-chan T) []T {
	var out []T
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		default:
			return out
		}
	}
}
