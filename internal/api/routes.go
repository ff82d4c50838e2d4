package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	cameras := s.router.Group("/cameras")
	{
		cameras.GET("", s.cameraHandler.ListCameras)
		cameras.GET("/:id", s.cameraHandler.GetCamera)
		cameras.GET("/:id/frame", s.cameraHandler.GetLatestFrame)
		cameras.POST("/:id/motion", s.cameraHandler.SetMotion)
	}

	recordings := s.router.Group("/recordings")
	{
		recordings.GET("", s.recordingHandler.ListRecordings)
		recordings.GET("/:id", s.recordingHandler.GetRecording)
	}

	system := s.router.Group("/system")
	{
		system.GET("/stats", s.systemHandler.GetStats)
	}
}
