package motionsensor

import "context"

// Callback receives the aggregated motion state of a camera. It may be
// called repeatedly with the same value.
type Callback func(motion bool)

// Sensor is a source of motion events for a single camera.
type Sensor interface {
	Start(ctx context.Context, cb Callback) error
	Stop()
}

// Always reports motion permanently, for cameras without a motion source.
type Always struct{}

func (Always) Start(_ context.Context, cb Callback) error {
	cb(true)
	return nil
}

func (Always) Stop() {}
