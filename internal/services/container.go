package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/models"
	"nvr-worker-go/internal/services/annotation"
	"nvr-worker-go/internal/services/catalog"
	"nvr-worker-go/internal/services/detection"
	"nvr-worker-go/internal/services/messaging"
	"nvr-worker-go/internal/services/motionsensor"
	"nvr-worker-go/internal/services/multiplexer"
	"nvr-worker-go/internal/services/recorder"
	"nvr-worker-go/internal/services/streamcapture"
	"nvr-worker-go/internal/services/uploader"
	"nvr-worker-go/internal/worker"
)

var (
	ErrUnknownCamera = errors.New("unknown camera")
	ErrNotWebhook    = errors.New("camera motion is not webhook driven")
)

type camera struct {
	feed    *config.CameraFeedConfig
	capture *streamcapture.Service
	runner  *worker.Runner
	sensor  motionsensor.Sensor
}

// ServiceContainer wires the pipeline: motion sensors gate capture, frames
// flow through the multiplexer into detection, annotation, the segment
// writer and finally the uploader.
type ServiceContainer struct {
	Config *config.Config

	Multiplexer *multiplexer.FeedMultiplexer
	Detection   *detection.Service
	Annotation  *annotation.Service
	Recorder    *recorder.Service
	Uploader    *uploader.Service
	Catalog     *catalog.Catalog
	Messaging   *messaging.Service

	cameras   []*camera
	byID      map[string]*camera
	mqtt      *motionsensor.MQTTBroker
	detector  detection.Detector
	runners   []*worker.Runner // detection, annotation, recorder, uploader
	startedAt time.Time
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config, cameras *config.CamerasConfig) (*ServiceContainer, error) {
	detector, err := detection.New(cfg.DetectorModel, detection.BackendConfig{
		ModelDir: cfg.ModelDir,
		Backend:  cfg.DetectorBackend,
	})
	if err != nil {
		return nil, err
	}
	if err := detector.Load(); err != nil {
		return nil, fmt.Errorf("load detector %s: %w", cfg.DetectorModel, err)
	}

	newMuxer, err := recorder.NewMuxerFactory(cfg)
	if err != nil {
		detector.Close()
		return nil, err
	}

	sc := &ServiceContainer{
		Config:      cfg,
		Multiplexer: multiplexer.New(),
		byID:        make(map[string]*camera),
		detector:    detector,
	}

	detected := make(chan *models.AnnotatedFrame, cfg.QueueSize)
	annotated := make(chan *models.AnnotatedFrame, cfg.QueueSize)
	outputs := make(chan models.OutputRecord, cfg.QueueSize)

	sc.Detection = detection.NewService(cfg, sc.Multiplexer, detected, detector)
	if cfg.WarmupImage != "" {
		if err := sc.Detection.Warmup(cfg.WarmupImage); err != nil {
			log.Warn().Err(err).Msg("Detector warmup failed")
		}
	}
	sc.Annotation = annotation.NewService(cfg, detected, annotated)
	sc.Recorder = recorder.NewService(cfg, annotated, outputs, newMuxer, recorder.JPEGSnapshotter{Quality: cfg.JPEGQuality})
	sc.Uploader = sc.newUploader(outputs)

	open := streamcapture.NewGocvTransportFactory(cfg.RTSPTransport)
	for _, feed := range cameras.Feeds() {
		cam := &camera{feed: feed}
		cam.capture = streamcapture.NewService(cfg, feed, sc.Multiplexer, streamcapture.NewMotionSignal(), open)
		cam.runner = worker.NewRunner(cam.capture, cfg.PanicRestartDelay)
		cam.sensor = sc.newSensor(feed)
		sc.cameras = append(sc.cameras, cam)
		sc.byID[feed.ID] = cam
	}

	for _, stage := range []worker.Stage{sc.Detection, sc.Annotation, sc.Recorder, sc.Uploader} {
		sc.runners = append(sc.runners, worker.NewRunner(stage, cfg.PanicRestartDelay))
	}

	log.Info().
		Int("cameras", len(sc.cameras)).
		Str("model", cfg.DetectorModel).
		Str("encoder", cfg.VideoEncoder).
		Msg("Pipeline initialized")
	return sc, nil
}

// newUploader connects the optional backends; any of them may be missing
// and the pipeline still runs.
func (sc *ServiceContainer) newUploader(outputs <-chan models.OutputRecord) *uploader.Service {
	cfg := sc.Config

	var store uploader.ObjectStore
	minioStore, err := uploader.NewMinioStore(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Object storage unavailable, recordings will be discarded")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.UploadTimeout)
		if err := minioStore.EnsureBucket(ctx, cfg.StorageBucket); err != nil {
			// the bucket check is retried on the first upload
			log.Warn().Err(err).Str("bucket", cfg.StorageBucket).Msg("Failed to prepare bucket")
		}
		cancel()
		store = minioStore
	}

	var index uploader.Indexer
	if cat, err := catalog.Open(cfg.CatalogPath); err != nil {
		log.Warn().Err(err).Str("path", cfg.CatalogPath).Msg("Recording catalog disabled")
	} else {
		sc.Catalog = cat
		index = cat
	}

	var events uploader.Publisher
	if cfg.NatsEnabled {
		if msg, err := messaging.NewService(cfg); err != nil {
			log.Warn().Err(err).Str("url", cfg.NatsURL).Msg("NATS unavailable, recording events disabled")
		} else {
			sc.Messaging = msg
			events = msg
		}
	}

	return uploader.NewService(cfg, outputs, store, index, events)
}

func (sc *ServiceContainer) newSensor(feed *config.CameraFeedConfig) motionsensor.Sensor {
	switch feed.Motion.Type {
	case config.MotionHikvision:
		return motionsensor.NewHikvision(sc.Config, feed.ID, feed.Motion)
	case config.MotionMQTT:
		if sc.mqtt == nil {
			sc.mqtt = motionsensor.NewMQTTBroker(sc.Config)
		}
		return sc.mqtt.Sensor(feed.Motion.Topic)
	case config.MotionWebhook:
		// driven through SetMotion
		return nil
	default:
		return motionsensor.Always{}
	}
}

// Start launches every stage, consumers first, then the motion sensors.
func (sc *ServiceContainer) Start(ctx context.Context) error {
	sc.startedAt = time.Now()

	for i := len(sc.runners) - 1; i >= 0; i-- {
		sc.runners[i].Start()
	}
	for _, cam := range sc.cameras {
		cam.runner.Start()
	}

	if sc.mqtt != nil {
		if err := sc.mqtt.Connect(); err != nil {
			log.Error().Err(err).Msg("MQTT connection failed, MQTT cameras stay idle until it recovers")
		}
	}

	for _, cam := range sc.cameras {
		if cam.sensor == nil {
			continue
		}
		if err := cam.sensor.Start(ctx, cam.capture.Signal().Set); err != nil {
			log.Error().Err(err).Str("camera_id", cam.feed.ID).Str("motion", cam.feed.Motion.Type).Msg("Failed to start motion sensor")
		}
	}

	log.Info().Int("cameras", len(sc.cameras)).Msg("Pipeline started")
	return nil
}

// SetMotion drives the motion signal of a webhook camera.
func (sc *ServiceContainer) SetMotion(cameraID string, active bool) error {
	cam, ok := sc.byID[cameraID]
	if !ok {
		return ErrUnknownCamera
	}
	if cam.feed.Motion.Type != config.MotionWebhook {
		return ErrNotWebhook
	}
	cam.capture.Signal().Set(active)
	return nil
}

// CameraIDs returns the configured cameras in id order.
func (sc *ServiceContainer) CameraIDs() []string {
	ids := make([]string, 0, len(sc.cameras))
	for _, cam := range sc.cameras {
		ids = append(ids, cam.feed.ID)
	}
	return ids
}

// LatestFrame is the last annotated frame seen for a camera.
func (sc *ServiceContainer) LatestFrame(cameraID string) (*models.Frame, bool) {
	return sc.Annotation.LatestFrame(cameraID)
}

// CameraStatus combines a camera's configuration and capture state.
type CameraStatus struct {
	streamcapture.Stats
	MotionType string       `json:"motion_type"`
	Runner     worker.Stats `json:"runner"`
}

func (sc *ServiceContainer) Camera(cameraID string) (CameraStatus, bool) {
	cam, ok := sc.byID[cameraID]
	if !ok {
		return CameraStatus{}, false
	}
	return CameraStatus{
		Stats:      cam.capture.Stats(),
		MotionType: cam.feed.Motion.Type,
		Runner:     cam.runner.Stats(),
	}, true
}

func (sc *ServiceContainer) Cameras() []CameraStatus {
	out := make([]CameraStatus, 0, len(sc.cameras))
	for _, cam := range sc.cameras {
		st, _ := sc.Camera(cam.feed.ID)
		out = append(out, st)
	}
	return out
}

// RunnerStats lists every stage runner, captures first.
func (sc *ServiceContainer) RunnerStats() []worker.Stats {
	out := make([]worker.Stats, 0, len(sc.cameras)+len(sc.runners))
	for _, cam := range sc.cameras {
		out = append(out, cam.runner.Stats())
	}
	for _, r := range sc.runners {
		out = append(out, r.Stats())
	}
	return out
}

// Healthy is true while every stage is running.
func (sc *ServiceContainer) Healthy() bool {
	for _, st := range sc.RunnerStats() {
		if st.State != worker.StateRunning {
			return false
		}
	}
	return true
}

func (sc *ServiceContainer) Uptime() time.Duration {
	if sc.startedAt.IsZero() {
		return 0
	}
	return time.Since(sc.startedAt)
}

// Shutdown stops producers before consumers so the recorder can flush
// open segments and the uploader can drain what they produce.
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	for _, cam := range sc.cameras {
		if cam.sensor != nil {
			cam.sensor.Stop()
		}
	}
	if sc.mqtt != nil {
		sc.mqtt.Disconnect()
	}

	var errs []error
	for _, cam := range sc.cameras {
		cam.runner.Stop()
	}
	for _, cam := range sc.cameras {
		if err := cam.runner.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cam.runner.Name(), err))
		}
	}

	for _, r := range sc.runners {
		if err := r.StopAndWait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
		log.Info().Str("stage", r.Name()).Msg("Stage stopped")
	}

	if err := sc.detector.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to release detector")
	}
	if err := sc.Messaging.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if sc.Catalog != nil {
		if err := sc.Catalog.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// PipelineStats collects the counters of every shared stage.
type PipelineStats struct {
	Multiplexer multiplexer.Stats `json:"multiplexer"`
	Detection   detection.Stats   `json:"detection"`
	Annotation  annotation.Stats  `json:"annotation"`
	Recorder    recorder.Stats    `json:"recorder"`
	Uploader    uploader.Stats    `json:"uploader"`
	MQTT        bool              `json:"mqtt_connected"`
	NATS        bool              `json:"nats_connected"`
	Catalog     bool              `json:"catalog_enabled"`
}

func (sc *ServiceContainer) PipelineStats() PipelineStats {
	st := PipelineStats{
		Multiplexer: sc.Multiplexer.Stats(),
		Detection:   sc.Detection.Stats(),
		Annotation:  sc.Annotation.Stats(),
		Recorder:    sc.Recorder.Stats(),
		Uploader:    sc.Uploader.Stats(),
		NATS:        sc.Messaging.IsConnected(),
		Catalog:     sc.Catalog != nil,
	}
	if sc.mqtt != nil {
		st.MQTT = sc.mqtt.IsConnected()
	}
	return st
}
