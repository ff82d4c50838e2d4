package recorder

import (
	"fmt"

	"gocv.io/x/gocv"

	"nvr-worker-go/internal/helpers"
	"nvr-worker-go/internal/models"
)

// Snapshotter stores a single frame as an image file.
type Snapshotter interface {
	Save(path string, frame *models.Frame) error
}

type JPEGSnapshotter struct {
	Quality int
}

func (j JPEGSnapshotter) Save(path string, frame *models.Frame) error {
	mat, err := helpers.FrameToMat(frame)
	if err != nil {
		return err
	}
	defer mat.Close()

	quality := j.Quality
	if quality <= 0 || quality > 100 {
		quality = helpers.DefaultJPEGQuality
	}
	if !gocv.IMWriteWithParams(path, mat, []int{gocv.IMWriteJpegQuality, quality}) {
		return fmt.Errorf("failed to write %s", path)
	}
	return nil
}
