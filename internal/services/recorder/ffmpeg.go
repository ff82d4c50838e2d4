package recorder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const ffmpegStopTimeout = 5 * time.Second

type ffmpegMuxer struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stderr    bytes.Buffer
	path      string
	frameSize int
	pacer     framePacer
}

// NewFFmpegFactory pipes raw BGR frames into an ffmpeg process encoding
// H.264 MP4.
func NewFFmpegFactory(ffmpegPath string, fps int) MuxerFactory {
	return func(path string, width, height int) (Muxer, error) {
		args := []string{
			"-f", "rawvideo",
			"-pix_fmt", "bgr24",
			"-s", fmt.Sprintf("%dx%d", width, height),
			"-r", strconv.Itoa(fps),
			"-i", "-",
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-crf", "23",
			"-pix_fmt", "yuv420p",
			"-movflags", "+faststart",
			"-f", "mp4",
			"-loglevel", "warning",
			"-y",
			path,
		}

		m := &ffmpegMuxer{
			cmd:       exec.Command(ffmpegPath, args...),
			path:      path,
			frameSize: width * height * 3,
			pacer:     newFramePacer(fps),
		}
		m.cmd.Stderr = &m.stderr

		stdin, err := m.cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
		}
		m.stdin = stdin

		if err := m.cmd.Start(); err != nil {
			return nil, fmt.Errorf("failed to start FFmpeg: %w", err)
		}

		log.Debug().Str("path", path).Strs("args", args).Msg("FFmpeg process started for segment")
		return m, nil
	}
}

func (m *ffmpegMuxer) WriteFrame(data []byte, pts int64) error {
	if len(data) != m.frameSize {
		return fmt.Errorf("frame size %d, want %d", len(data), m.frameSize)
	}
	for n := m.pacer.repeats(pts); n > 0; n-- {
		if _, err := m.stdin.Write(data); err != nil {
			return fmt.Errorf("failed to write frame data to FFmpeg: %w", err)
		}
	}
	return nil
}

// Close ends the input so ffmpeg finalises the file, then waits for it,
// interrupting and finally killing a process that does not exit.
func (m *ffmpegMuxer) Close() error {
	m.stdin.Close()

	done := make(chan error, 1)
	go func() {
		done <- m.cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("ffmpeg exited: %w: %s", err, strings.TrimSpace(m.stderr.String()))
		}
		return nil
	case <-time.After(ffmpegStopTimeout):
	}

	if err := m.cmd.Process.Signal(os.Interrupt); err != nil {
		log.Warn().Err(err).Str("path", m.path).Msg("Failed to send interrupt to FFmpeg")
	}
	select {
	case <-done:
		return fmt.Errorf("ffmpeg for %s needed an interrupt to stop", m.path)
	case <-time.After(ffmpegStopTimeout):
		m.cmd.Process.Kill()
		<-done
		return fmt.Errorf("force killed FFmpeg writing %s", m.path)
	}
}
