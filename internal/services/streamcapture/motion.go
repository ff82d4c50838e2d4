package streamcapture

import (
	"image"
	"sort"

	"gocv.io/x/gocv"

	"nvr-worker-go/internal/models"
)

const (
	motionBlurSize   = 21
	motionThreshold  = 20
	motionMergeRatio = 0.65
)

// MotionAnalyzer finds the regions that changed between two frames.
type MotionAnalyzer struct {
	MaxRegions int
	MinAreaPct float64
	MaxAreaPct float64
}

func NewMotionAnalyzer(maxRegions int, minAreaPct, maxAreaPct float64) *MotionAnalyzer {
	if maxRegions < 2 {
		maxRegions = 2
	}
	if maxRegions > 4 {
		maxRegions = 4
	}
	return &MotionAnalyzer{MaxRegions: maxRegions, MinAreaPct: minAreaPct, MaxAreaPct: maxAreaPct}
}

type contourBox struct {
	rect models.Rectangle
	area float64
}

// Regions returns square detection regions around the largest changed
// areas, or nil when nothing moved. Both frames must be 3-channel BGR of
// equal size.
func (a *MotionAnalyzer) Regions(prev, cur gocv.Mat) []models.Rectangle {
	width, height := cur.Cols(), cur.Rows()
	total := float64(width * height)
	minArea, maxArea := total*a.MinAreaPct, total*a.MaxAreaPct

	diff := gocv.NewMat()
	defer diff.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	blurred := gocv.NewMat()
	defer blurred.Close()
	thresh := gocv.NewMat()
	defer thresh.Close()

	gocv.AbsDiff(prev, cur, &diff)
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
	gocv.GaussianBlur(gray, &blurred, image.Pt(motionBlurSize, motionBlurSize), 0, 0, gocv.BorderDefault)
	gocv.Threshold(blurred, &thresh, motionThreshold, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(thresh, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	var boxes []contourBox
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area <= minArea || area >= maxArea {
			continue
		}
		br := gocv.BoundingRect(contour)
		boxes = append(boxes, contourBox{
			rect: models.NewRectangle(br.Min.X, br.Min.Y, br.Max.X, br.Max.Y),
			area: area,
		})
	}
	if len(boxes) == 0 {
		return nil
	}

	sort.SliceStable(boxes, func(i, j int) bool { return boxes[i].area > boxes[j].area })
	if len(boxes) > a.MaxRegions {
		boxes = boxes[:a.MaxRegions]
	}

	rects := make([]models.Rectangle, len(boxes))
	for i, b := range boxes {
		rects[i] = b.rect
	}
	rects = models.MergeRectangles(rects, motionMergeRatio)

	regions := make([]models.Rectangle, len(rects))
	for i, r := range rects {
		regions[i] = SquareBox(r, width, height)
	}
	return regions
}
