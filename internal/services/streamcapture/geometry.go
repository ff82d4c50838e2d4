package streamcapture

import "nvr-worker-go/internal/models"

// Detection input sizes a motion box is expanded to.
var squareSizes = []int{300, 600, 900}

func squareSize(r models.Rectangle) int {
	longest := max(r.Width(), r.Height())
	for _, size := range squareSizes {
		if longest <= size {
			return size
		}
	}
	return longest
}

// SquareBox expands r to the smallest standard square containing it,
// centered on r and shifted so it lies fully inside the frame.
func SquareBox(r models.Rectangle, frameWidth, frameHeight int) models.Rectangle {
	size := min(squareSize(r), frameWidth, frameHeight)

	cx := (r.X1 + r.X2) / 2
	cy := (r.Y1 + r.Y2) / 2

	x1 := clamp(cx-size/2, 0, frameWidth-size)
	y1 := clamp(cy-size/2, 0, frameHeight-size)

	return models.NewRectangle(x1, y1, x1+size, y1+size)
}

// SplitRegions covers the frame with its two extreme squares: left and
// right for landscape frames, top and bottom for portrait ones.
func SplitRegions(width, height int) []models.Rectangle {
	if width <= 0 || height <= 0 {
		return nil
	}
	if width == height {
		return []models.Rectangle{models.NewRectangle(0, 0, width, height)}
	}
	if width > height {
		return []models.Rectangle{
			models.NewRectangle(0, 0, height, height),
			models.NewRectangle(width-height, 0, width, height),
		}
	}
	return []models.Rectangle{
		models.NewRectangle(0, 0, width, width),
		models.NewRectangle(0, height-width, width, height),
	}
}

func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
