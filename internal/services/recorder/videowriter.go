package recorder

import (
	"fmt"

	"gocv.io/x/gocv"
)

type videoWriterMuxer struct {
	writer *gocv.VideoWriter
	width  int
	height int
	pacer  framePacer
}

// NewVideoWriterFactory writes MPEG-4 files through OpenCV.
func NewVideoWriterFactory(fps int) MuxerFactory {
	return func(path string, width, height int) (Muxer, error) {
		writer, err := gocv.VideoWriterFile(path, "mp4v", float64(fps), width, height, true)
		if err != nil {
			return nil, fmt.Errorf("open video writer %s: %w", path, err)
		}
		if !writer.IsOpened() {
			writer.Close()
			return nil, fmt.Errorf("video writer for %s did not open", path)
		}
		return &videoWriterMuxer{
			writer: writer,
			width:  width,
			height: height,
			pacer:  newFramePacer(fps),
		}, nil
	}
}

func (m *videoWriterMuxer) WriteFrame(data []byte, pts int64) error {
	n := m.pacer.repeats(pts)
	if n == 0 {
		return nil
	}

	mat, err := gocv.NewMatFromBytes(m.height, m.width, gocv.MatTypeCV8UC3, data)
	if err != nil {
		return fmt.Errorf("frame to mat: %w", err)
	}
	defer mat.Close()

	for i := 0; i < n; i++ {
		if err := m.writer.Write(mat); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
	}
	return nil
}

func (m *videoWriterMuxer) Close() error {
	return m.writer.Close()
}
