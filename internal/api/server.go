package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"nvr-worker-go/internal/api/handlers"
	"nvr-worker-go/internal/api/middleware"
	"nvr-worker-go/internal/config"
)

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server

	pipeline   handlers.Pipeline
	grpcServer *grpc.Server
	health     *health.Server
	stopHealth context.CancelFunc

	healthHandler    *handlers.HealthHandler
	cameraHandler    *handlers.CameraHandler
	recordingHandler *handlers.RecordingHandler
	systemHandler    *handlers.SystemHandler
}

// NewServer builds the HTTP and gRPC servers. recordings may be nil when
// the catalog is disabled.
func NewServer(cfg *config.Config, pipeline handlers.Pipeline, recordings handlers.RecordingStore) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:           cfg,
		router:           gin.New(),
		pipeline:         pipeline,
		healthHandler:    handlers.NewHealthHandler(cfg, pipeline),
		cameraHandler:    handlers.NewCameraHandler(pipeline, cfg.JPEGQuality),
		recordingHandler: handlers.NewRecordingHandler(recordings),
		systemHandler:    handlers.NewSystemHandler(cfg.WorkerID, pipeline),
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupSwagger()
	s.setupGRPC()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestContext())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
}

// Start serves gRPC health in the background and blocks on HTTP.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopHealth = cancel
	go s.watchHealth(ctx)

	go func() {
		log.Info().Int("port", s.config.GRPCPort).Msg("Starting gRPC health server")
		if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error().Err(err).Msg("gRPC server stopped")
		}
	}()

	log.Info().Int("port", s.config.Port).Msg("Starting NVR worker API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping NVR worker API")
	if s.stopHealth != nil {
		s.stopHealth()
	}
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}
