package detection

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"

	"nvr-worker-go/internal/models"
)

// Detector runs an object detection model on an image. Returned boxes are
// relative to the image passed in. Implementations are not safe for
// concurrent use.
type Detector interface {
	Name() string
	Load() error
	Detect(img gocv.Mat) ([]models.Detection, error)
	Close() error
}

// BackendConfig selects where model files live and what runs them.
type BackendConfig struct {
	ModelDir string
	Backend  string // "cpu" or "cuda"
}

func (c BackendConfig) path(model, file string) string {
	return filepath.Join(c.ModelDir, model, file)
}

func (c BackendConfig) cuda() bool {
	return strings.EqualFold(c.Backend, "cuda")
}

// Factory builds an unloaded detector.
type Factory func(cfg BackendConfig) Detector

var registry = map[string]Factory{
	"tf_ssd_mobilenet_v2": func(cfg BackendConfig) Detector {
		return newSSDDetector("tf_ssd_mobilenet_v2", cfg)
	},
	"tf_ssdlite_mobilenet_v2": func(cfg BackendConfig) Detector {
		return newSSDDetector("tf_ssdlite_mobilenet_v2", cfg)
	},
	"yolo_v3_tiny": func(cfg BackendConfig) Detector {
		return newYOLODetector("yolo_v3_tiny", cfg)
	},
}

// Models lists the model names New accepts.
func Models() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the detector for a model name, not yet loaded.
func New(name string, cfg BackendConfig) (Detector, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (available: %s)", name, strings.Join(Models(), ", "))
	}
	return factory(cfg), nil
}
