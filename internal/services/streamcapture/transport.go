package streamcapture

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// ErrTransport marks failures of the underlying stream connection.
var ErrTransport = errors.New("stream transport failure")

// Transport is a connection to a camera stream. Grab advances past one
// frame without decoding it; Read decodes the next frame, owned by the
// caller.
type Transport interface {
	Grab() bool
	Read() (gocv.Mat, error)
	Release() error
}

// TransportFactory opens a stream by URL.
type TransportFactory func(url string) (Transport, error)

var ffmpegOptionsOnce sync.Once

// configureFFmpegOptions sets the OpenCV FFmpeg backend options for low
// latency RTSP reads. They are process wide, so set once.
func configureFFmpegOptions(rtspTransport string) {
	ffmpegOptionsOnce.Do(func() {
		ffmpegOptions := map[string]string{
			"rtsp_transport":      rtspTransport,
			"buffer_size":         "2097152", // 2MB
			"max_delay":           "500000",  // 0.5s
			"stimeout":            "5000000", // 5s
			"rw_timeout":          "5000000",
			"flags":               "low_delay",
			"fflags":              "nobuffer+flush_packets",
			"analyzeduration":     "500000",
			"probesize":           "2000000",
			"allowed_media_types": "video",
		}

		keys := make([]string, 0, len(ffmpegOptions))
		for key := range ffmpegOptions {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		options := make([]string, 0, len(keys))
		for _, key := range keys {
			options = append(options, key+";"+ffmpegOptions[key])
		}
		optionsStr := strings.Join(options, "|")

		if os.Getenv("OPENCV_FFMPEG_CAPTURE_OPTIONS") == "" {
			os.Setenv("OPENCV_FFMPEG_CAPTURE_OPTIONS", optionsStr)
		}
		log.Debug().Str("ffmpeg_options", optionsStr).Msg("FFmpeg options configured for OpenCV")
	})
}

type gocvTransport struct {
	cap *gocv.VideoCapture
}

// NewGocvTransportFactory opens streams with OpenCV's FFmpeg backend,
// keeping only the most recent frame buffered.
func NewGocvTransportFactory(rtspTransport string) TransportFactory {
	return func(url string) (Transport, error) {
		configureFFmpegOptions(rtspTransport)

		cap, err := gocv.OpenVideoCaptureWithAPI(url, gocv.VideoCaptureFFmpeg)
		if err != nil {
			return nil, fmt.Errorf("%w: open stream: %v", ErrTransport, err)
		}
		if !cap.IsOpened() {
			cap.Close()
			return nil, fmt.Errorf("%w: stream not opened", ErrTransport)
		}
		cap.Set(gocv.VideoCaptureBufferSize, 1)

		return &gocvTransport{cap: cap}, nil
	}
}

// Grab demuxes one packet and drops it; no decode or color conversion.
// A dead stream surfaces on the next Read.
func (t *gocvTransport) Grab() bool {
	t.cap.Grab(1)
	return t.cap.IsOpened()
}

func (t *gocvTransport) Read() (gocv.Mat, error) {
	img := gocv.NewMat()
	if !t.cap.Read(&img) || img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("%w: no frame read", ErrTransport)
	}
	return img, nil
}

func (t *gocvTransport) Release() error {
	return t.cap.Close()
}

// toBGR converts img in place to 3-channel BGR.
func toBGR(img *gocv.Mat) error {
	var code gocv.ColorConversionCode
	switch img.Channels() {
	case 3:
		return nil
	case 1:
		code = gocv.ColorGrayToBGR
	case 4:
		code = gocv.ColorBGRAToBGR
	default:
		return fmt.Errorf("unsupported channel count %d", img.Channels())
	}
	converted := gocv.NewMat()
	gocv.CvtColor(*img, &converted, code)
	img.Close()
	*img = converted
	return nil
}
