package models

import "time"

// Frame is a single decoded image from one camera. The pixel buffer is
// packed 8-bit BGR, Width*Height*3 bytes. A frame is not modified after it
// has been handed to the next stage, except by the stage that owns it.
type Frame struct {
	CameraID string
	Data     []byte
	Width    int
	Height   int

	// Regions are the sub-rectangles to run detection on.
	Regions []Rectangle
	// Detailed is true when Regions came from motion analysis and false
	// when they are the whole-frame split fallback.
	Detailed bool

	// CreatedAt is the capture time in unix milliseconds.
	CreatedAt int64
}

func NewFrame(cameraID string, data []byte, width, height int, regions []Rectangle, detailed bool, createdAt int64) *Frame {
	return &Frame{
		CameraID:  cameraID,
		Data:      data,
		Width:     width,
		Height:    height,
		Regions:   regions,
		Detailed:  detailed,
		CreatedAt: createdAt,
	}
}

// Time returns CreatedAt as a UTC time.
func (f *Frame) Time() time.Time {
	return time.UnixMilli(f.CreatedAt).UTC()
}

// Bounds is the full-frame rectangle.
func (f *Frame) Bounds() Rectangle {
	return Rectangle{X2: f.Width, Y2: f.Height}
}

// NowMillis is the clock used for frame timestamps.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
