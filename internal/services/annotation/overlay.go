package annotation

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"nvr-worker-go/internal/models"
)

var labelColors = map[string]color.RGBA{
	"person": {R: 0, G: 255, B: 0, A: 255},
	"car":    {R: 0, G: 140, B: 255, A: 255},
	"cat":    {R: 255, G: 200, B: 0, A: 255},
	"dog":    {R: 255, G: 120, B: 0, A: 255},
	"truck":  {R: 0, G: 100, B: 255, A: 255},
}

const (
	boxThickness    = 2
	cornerLength    = 15
	cornerThickness = 3
	fontScale       = 0.6
	fontThickness   = 2
	captionPadding  = 4
)

// Overlay draws detections and frame metadata onto an image.
type Overlay struct {
	DefaultColor color.RGBA
	ShowCameraID bool
	ShowTime     bool
}

func (o Overlay) colorFor(label string) color.RGBA {
	if c, ok := labelColors[label]; ok {
		return c
	}
	return o.DefaultColor
}

// DrawDetections draws a box with corner accents and a "label: NN%"
// caption for every detection.
func (o Overlay) DrawDetections(mat *gocv.Mat, detections []models.Detection) {
	if mat == nil || mat.Empty() {
		return
	}
	width, height := mat.Cols(), mat.Rows()
	if width < 2 || height < 2 {
		return
	}

	for _, det := range detections {
		x1 := max(0, min(width-2, det.Box.X1))
		y1 := max(0, min(height-2, det.Box.Y1))
		x2 := max(x1+1, min(width-1, det.Box.X2))
		y2 := max(y1+1, min(height-1, det.Box.Y2))
		c := o.colorFor(det.Label)

		gocv.Rectangle(mat, image.Rect(x1, y1, x2, y2), c, boxThickness)

		corner := min(cornerLength, (x2-x1)/2, (y2-y1)/2)
		gocv.Line(mat, image.Pt(x1, y1), image.Pt(x1+corner, y1), c, cornerThickness)
		gocv.Line(mat, image.Pt(x1, y1), image.Pt(x1, y1+corner), c, cornerThickness)
		gocv.Line(mat, image.Pt(x2, y1), image.Pt(x2-corner, y1), c, cornerThickness)
		gocv.Line(mat, image.Pt(x2, y1), image.Pt(x2, y1+corner), c, cornerThickness)
		gocv.Line(mat, image.Pt(x1, y2), image.Pt(x1+corner, y2), c, cornerThickness)
		gocv.Line(mat, image.Pt(x1, y2), image.Pt(x1, y2-corner), c, cornerThickness)
		gocv.Line(mat, image.Pt(x2, y2), image.Pt(x2-corner, y2), c, cornerThickness)
		gocv.Line(mat, image.Pt(x2, y2), image.Pt(x2, y2-corner), c, cornerThickness)

		drawCaption(mat, det.String(), x1, y1, c)
	}
}

// DrawInfo stamps the camera id and capture time in the top left corner.
func (o Overlay) DrawInfo(mat *gocv.Mat, cameraID string, ts time.Time) {
	var parts []string
	if o.ShowCameraID {
		parts = append(parts, cameraID)
	}
	if o.ShowTime {
		parts = append(parts, ts.UTC().Format("2006-01-02 15:04:05Z"))
	}
	if len(parts) == 0 {
		return
	}
	text := strings.Join(parts, "  ")
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, fontScale, fontThickness)
	drawCaption(mat, text, captionPadding, size.Y+captionPadding*3, color.RGBA{R: 255, G: 255, B: 255, A: 255})
}

// drawCaption writes text above (x, y) on a filled background, moving it
// inside the box when there is no room above.
func drawCaption(mat *gocv.Mat, text string, x, y int, c color.RGBA) {
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, fontScale, fontThickness)

	baseline := y - captionPadding
	if baseline-size.Y-captionPadding < 0 {
		baseline = y + size.Y + captionPadding*2
	}

	bg := image.Rect(x, baseline-size.Y-captionPadding, x+size.X+captionPadding*2, baseline+captionPadding)
	gocv.Rectangle(mat, bg, color.RGBA{R: 0, G: 0, B: 0, A: 200}, -1)
	gocv.PutText(mat, text, image.Pt(x+captionPadding, baseline), gocv.FontHersheySimplex, fontScale, c, fontThickness)
}

// parseHexColor converts a color string like "#RRGGBB" to color.RGBA
func parseHexColor(s string) (color.RGBA, error) {
	var c color.RGBA
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return c, fmt.Errorf("invalid color length: %s", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return c, err
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
