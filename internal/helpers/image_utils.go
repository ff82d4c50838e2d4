package helpers

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"nvr-worker-go/internal/models"
)

// DefaultJPEGQuality applies when the requested quality is outside 1..100.
const DefaultJPEGQuality = 95

// FrameToMat wraps a frame's BGR buffer in a Mat. The caller must Close it.
func FrameToMat(frame *models.Frame) (gocv.Mat, error) {
	if frame == nil || len(frame.Data) == 0 {
		return gocv.NewMat(), fmt.Errorf("empty frame")
	}
	if frame.Width <= 0 || frame.Height <= 0 || frame.Width*frame.Height*3 != len(frame.Data) {
		return gocv.NewMat(), fmt.Errorf("frame buffer length %d does not match %dx%d BGR", len(frame.Data), frame.Width, frame.Height)
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create Mat from BGR data: %w", err)
	}
	return mat, nil
}

// EncodeJPEG converts a frame to JPEG bytes.
func EncodeJPEG(frame *models.Frame, quality int) ([]byte, error) {
	mat, err := FrameToMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	return EncodeMatJPEG(mat, quality)
}

func EncodeMatJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	defer buf.Close()

	// copy out of the native buffer before it is released
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// ClampRect limits r to the frame bounds.
func ClampRect(r models.Rectangle, width, height int) models.Rectangle {
	return models.NewRectangle(
		clamp(r.X1, 0, width),
		clamp(r.Y1, 0, height),
		clamp(r.X2, 0, width),
		clamp(r.Y2, 0, height),
	)
}

// ToImageRect converts to the image package rectangle gocv expects.
func ToImageRect(r models.Rectangle) image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
