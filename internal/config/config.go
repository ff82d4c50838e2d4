package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	GRPCPort    int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Camera feeds (YAML)
	CamerasConfig string

	// NATS (recording events)
	// Default: nats://localhost:4222 (works with Docker Compose setup)
	// Docker: Use nats://nats:4222 if running worker in Docker
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	NatsDrainTimeout   time.Duration // For graceful shutdown
	RecordingsSubject  string

	// MQTT (motion events)
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// Hikvision alert stream
	HikvisionEventTimeout time.Duration

	// Capture
	CaptureWarmup     time.Duration
	CaptureCooldown   time.Duration
	MotionMaxRegions  int
	MotionMinAreaPct  float64
	MotionMaxAreaPct  float64
	RTSPTransport     string
	ReconnectInterval time.Duration

	// Pipeline queues
	QueueSize    int
	StageTimeout time.Duration
	HandoffWait  time.Duration
	TeardownWait time.Duration

	// Detection
	DetectorModel       string
	ModelDir            string
	DetectorBackend     string
	ConfidenceThreshold float64
	MergeOverlapRatio   float64
	AllowedClasses      []string
	WarmupImage         string

	// Annotation overlay
	ShowCameraID bool
	ShowTime     bool
	OverlayColor string

	// Recording
	VideoOutputDir     string
	SegmentIdleTimeout time.Duration
	SegmentMaxDuration time.Duration
	VideoFPS           int
	VideoEncoder       string // "opencv" or "ffmpeg"
	FFmpegPath         string
	JPEGQuality        int

	// Object storage (MinIO / S3)
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageUseSSL    bool
	StorageBucket    string
	StorageRegion    string
	UploadTimeout    time.Duration

	// Recording catalog
	CatalogPath string

	// Swagger Configuration
	SwaggerHost string
	SwaggerPort int

	// Graceful Shutdown
	ShutdownTimeout time.Duration

	// Delay before restarting a stage step that panicked
	PanicRestartDelay time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "nvr-1"),
		Port:        getEnvInt("PORT", 8000),
		GRPCPort:    getEnvInt("GRPC_PORT", 50051),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		CamerasConfig: getEnv("CAMERAS_CONFIG", "config/cameras.yaml"),

		// NATS (configured for Docker Compose setup)
		NatsEnabled:        getEnvBool("NATS_ENABLED", true),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		NatsDrainTimeout:   getEnvDuration("NATS_DRAIN_TIMEOUT", 5*time.Second),
		RecordingsSubject:  getEnv("RECORDINGS_SUBJECT", "recordings"),

		// MQTT
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "nvr-worker"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		HikvisionEventTimeout: getEnvDuration("HIKVISION_EVENT_TIMEOUT", 5*time.Second),

		// Capture
		CaptureWarmup:     getEnvDuration("CAPTURE_WARMUP", 1*time.Second),
		CaptureCooldown:   getEnvDuration("CAPTURE_COOLDOWN", 5*time.Second),
		MotionMaxRegions:  getEnvInt("MOTION_MAX_REGIONS", 2),
		MotionMinAreaPct:  getEnvFloat("MOTION_MIN_AREA_PCT", 0.0005),
		MotionMaxAreaPct:  getEnvFloat("MOTION_MAX_AREA_PCT", 0.2),
		RTSPTransport:     getEnv("RTSP_TRANSPORT", "tcp"),
		ReconnectInterval: getEnvDuration("RECONNECT_INTERVAL", 5*time.Second),

		// Pipeline
		QueueSize:    getEnvInt("QUEUE_SIZE", 10),
		StageTimeout: getEnvDuration("STAGE_TIMEOUT", 1*time.Second),
		HandoffWait:  getEnvDuration("HANDOFF_WAIT", 100*time.Millisecond),
		TeardownWait: getEnvDuration("TEARDOWN_WAIT", 5*time.Second),

		// Detection
		DetectorModel:       getEnv("DETECTOR_MODEL", "tf_ssd_mobilenet_v2"),
		ModelDir:            getEnv("MODEL_DIR", "data/models"),
		DetectorBackend:     getEnv("DETECTOR_BACKEND", "cpu"),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.5),
		MergeOverlapRatio:   getEnvFloat("MERGE_OVERLAP_RATIO", 0.65),
		AllowedClasses:      getEnvList("ALLOWED_CLASSES", []string{"person", "car", "cat"}),
		WarmupImage:         getEnv("WARMUP_IMAGE", ""),

		// Annotation overlay
		ShowCameraID: getEnvBool("SHOW_CAMERA_ID", true),
		ShowTime:     getEnvBool("SHOW_TIME", true),
		OverlayColor: getEnv("OVERLAY_COLOR", "#FF0000"),

		// Recording
		VideoOutputDir:     getEnv("VIDEO_OUTPUT_DIR", "recordings"),
		SegmentIdleTimeout: getEnvDuration("SEGMENT_IDLE_TIMEOUT", 10*time.Second),
		SegmentMaxDuration: getEnvDuration("SEGMENT_MAX_DURATION", 20*time.Second),
		VideoFPS:           getEnvInt("VIDEO_FPS", 10),
		VideoEncoder:       getEnv("VIDEO_ENCODER", "opencv"),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		JPEGQuality:        getEnvInt("JPEG_QUALITY", 90),

		// Object storage
		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageUseSSL:    getEnvBool("STORAGE_USE_SSL", false),
		StorageBucket:    getEnv("STORAGE_BUCKET", "nvr"),
		StorageRegion:    getEnv("STORAGE_REGION", ""),
		UploadTimeout:    getEnvDuration("UPLOAD_TIMEOUT", 60*time.Second),

		CatalogPath: getEnv("CATALOG_PATH", "data/catalog.db"),

		// Swagger Configuration
		SwaggerHost: getEnv("SWAGGER_HOST", "localhost"),
		SwaggerPort: getEnvInt("SWAGGER_PORT", 8000),

		// Graceful Shutdown
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		PanicRestartDelay: getEnvDuration("PANIC_RESTART_DELAY", 2*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList reads a comma separated list, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
