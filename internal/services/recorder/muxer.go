package recorder

import (
	"fmt"
	"strings"

	"nvr-worker-go/internal/config"
)

// Muxer encodes BGR frames into a video file. pts is the frame's offset in
// milliseconds from the first frame of the file.
type Muxer interface {
	WriteFrame(data []byte, pts int64) error
	Close() error
}

// MuxerFactory opens a muxer writing width x height frames to path.
type MuxerFactory func(path string, width, height int) (Muxer, error)

// NewMuxerFactory picks the encoder configured by VIDEO_ENCODER.
func NewMuxerFactory(cfg *config.Config) (MuxerFactory, error) {
	switch strings.ToLower(cfg.VideoEncoder) {
	case "", "opencv":
		return NewVideoWriterFactory(cfg.VideoFPS), nil
	case "ffmpeg":
		return NewFFmpegFactory(cfg.FFmpegPath, cfg.VideoFPS), nil
	default:
		return nil, fmt.Errorf("unknown video encoder %q", cfg.VideoEncoder)
	}
}

// framePacer places variable-rate frames on a constant-rate timeline:
// each frame fills every output slot from its timestamp up to the next
// frame's, and frames arriving faster than the output rate are skipped.
type framePacer struct {
	fps  int64
	next int64
}

func newFramePacer(fps int) framePacer {
	if fps <= 0 {
		fps = 10
	}
	return framePacer{fps: int64(fps)}
}

// repeats returns how many times to write the frame with this pts.
func (p *framePacer) repeats(pts int64) int {
	if pts < 0 {
		pts = 0
	}
	slot := pts * p.fps / 1000
	if slot < p.next {
		return 0
	}
	n := slot - p.next + 1
	p.next = slot + 1
	return int(n)
}
