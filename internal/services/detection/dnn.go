package detection

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"nvr-worker-go/internal/models"
)

const (
	ssdInputSize  = 300
	yoloInputSize = 416
	// raw scores below this never reach the confidence threshold
	minRawConfidence = 0.05
)

func configureBackend(net *gocv.Net, cfg BackendConfig) {
	if cfg.cuda() {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
		return
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
}

func checkFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("model file: %w", err)
		}
	}
	return nil
}

// ssdDetector runs TensorFlow SSD graphs exported with the object
// detection API. Output rows are [image, class, score, x1, y1, x2, y2]
// with normalised coordinates.
type ssdDetector struct {
	name   string
	cfg    BackendConfig
	net    gocv.Net
	loaded bool
}

func newSSDDetector(name string, cfg BackendConfig) *ssdDetector {
	return &ssdDetector{name: name, cfg: cfg}
}

func (d *ssdDetector) Name() string { return d.name }

func (d *ssdDetector) Load() error {
	model := d.cfg.path(d.name, "frozen_inference_graph.pb")
	graph := d.cfg.path(d.name, "graph.pbtxt")
	if err := checkFiles(model, graph); err != nil {
		return err
	}

	d.net = gocv.ReadNetFromTensorflow(model, graph)
	if d.net.Empty() {
		return fmt.Errorf("failed to load %s from %s", d.name, model)
	}
	configureBackend(&d.net, d.cfg)
	d.loaded = true
	return nil
}

func (d *ssdDetector) Detect(img gocv.Mat) ([]models.Detection, error) {
	if !d.loaded {
		return nil, fmt.Errorf("%s: model not loaded", d.name)
	}
	if img.Empty() {
		return nil, fmt.Errorf("%s: empty image", d.name)
	}

	blob := gocv.BlobFromImage(img, 1.0, image.Pt(ssdInputSize, ssdInputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	width, height := float32(img.Cols()), float32(img.Rows())

	var detections []models.Detection
	for i := 0; i+6 < out.Total(); i += 7 {
		score := out.GetFloatAt(0, i+2)
		if score < minRawConfidence {
			continue
		}
		label, ok := LabelForID(int(out.GetFloatAt(0, i+1)))
		if !ok {
			continue
		}
		detections = append(detections, models.Detection{
			Label:      label,
			Confidence: score,
			Box: models.NewRectangle(
				int(out.GetFloatAt(0, i+3)*width),
				int(out.GetFloatAt(0, i+4)*height),
				int(out.GetFloatAt(0, i+5)*width),
				int(out.GetFloatAt(0, i+6)*height),
			),
		})
	}
	return detections, nil
}

func (d *ssdDetector) Close() error {
	if !d.loaded {
		return nil
	}
	d.loaded = false
	return d.net.Close()
}

// yoloDetector runs Darknet YOLO models. Overlapping boxes are not
// suppressed here; the per-class merge downstream folds them together.
type yoloDetector struct {
	name    string
	cfg     BackendConfig
	net     gocv.Net
	outputs []string
	loaded  bool
}

func newYOLODetector(name string, cfg BackendConfig) *yoloDetector {
	return &yoloDetector{name: name, cfg: cfg}
}

func (d *yoloDetector) Name() string { return d.name }

func (d *yoloDetector) Load() error {
	weights := d.cfg.path(d.name, "yolov3-tiny.weights")
	netCfg := d.cfg.path(d.name, "yolov3-tiny.cfg")
	if err := checkFiles(weights, netCfg); err != nil {
		return err
	}

	d.net = gocv.ReadNet(weights, netCfg)
	if d.net.Empty() {
		return fmt.Errorf("failed to load %s from %s", d.name, weights)
	}
	configureBackend(&d.net, d.cfg)

	d.outputs = d.outputs[:0]
	for _, id := range d.net.GetUnconnectedOutLayers() {
		layer := d.net.GetLayer(id)
		d.outputs = append(d.outputs, layer.GetName())
		layer.Close()
	}
	d.loaded = true
	return nil
}

func (d *yoloDetector) Detect(img gocv.Mat) ([]models.Detection, error) {
	if !d.loaded {
		return nil, fmt.Errorf("%s: model not loaded", d.name)
	}
	if img.Empty() {
		return nil, fmt.Errorf("%s: empty image", d.name)
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(yoloInputSize, yoloInputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	outs := d.net.ForwardLayers(d.outputs)
	defer func() {
		for _, m := range outs {
			m.Close()
		}
	}()

	width, height := float32(img.Cols()), float32(img.Rows())

	var detections []models.Detection
	for _, out := range outs {
		for row := 0; row < out.Rows(); row++ {
			classID, score := -1, float32(0)
			for col := 5; col < out.Cols(); col++ {
				if v := out.GetFloatAt(row, col); v > score {
					classID, score = col-5, v
				}
			}
			if classID < 0 || classID >= len(cocoClassNames) || score < minRawConfidence {
				continue
			}

			cx := out.GetFloatAt(row, 0) * width
			cy := out.GetFloatAt(row, 1) * height
			w := out.GetFloatAt(row, 2) * width
			h := out.GetFloatAt(row, 3) * height

			detections = append(detections, models.Detection{
				Label:      cocoClassNames[classID],
				Confidence: score,
				Box: models.NewRectangle(
					int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2),
				),
			})
		}
	}
	return detections, nil
}

func (d *yoloDetector) Close() error {
	if !d.loaded {
		return nil
	}
	d.loaded = false
	return d.net.Close()
}
