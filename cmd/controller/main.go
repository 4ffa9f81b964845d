package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"camfleet/internal/core/services"
	httphandlers "camfleet/internal/handlers/http"
	"camfleet/internal/infrastructure/gateway"
	"camfleet/internal/infrastructure/middleware"
	"camfleet/internal/infrastructure/monitoring"
	"camfleet/internal/infrastructure/repositories"
	"camfleet/internal/infrastructure/viewer"
	"camfleet/pkg/config"
	"camfleet/pkg/logger"
	"camfleet/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	configPath := os.Getenv("CAMFLEET_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		// Config file present but unusable; nothing sensible to fall back to
		panic(err)
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracerProvider.Shutdown(ctx)
	}()

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	clientRepo := repoFactory.CreateClientRepository()

	// Initialize monitoring
	collector := monitoring.NewPrometheusCollector()

	// Initialize services. The agent server doubles as the command channel,
	// so it exists before the services that consume agent traffic.
	registryService := services.NewRegistryService(clientRepo, cfg.Agent.HeartbeatWindow, log)

	agentServer := gateway.NewAgentServer(registryService, collector, gateway.Options{
		PingInterval:     cfg.Agent.PingInterval,
		PongTimeout:      cfg.Agent.PongTimeout,
		WriteTimeout:     cfg.Agent.WriteTimeout,
		CommandTimeout:   cfg.Agent.CommandTimeout,
		MaxMessageBytes:  cfg.Agent.MaxMessageBytes,
		BreakerThreshold: cfg.Agent.BreakerThreshold,
	}, log)

	captureManager := services.NewCaptureManager(agentServer, log)
	catalogService := services.NewCatalogService(agentServer, log)
	recordingService := services.NewRecordingService(
		agentServer, registryService, catalogService, captureManager,
		cfg.Recording.OutputDir, collector, log,
	)
	previewService := services.NewPreviewService(
		registryService, catalogService, captureManager, collector,
		cfg.Preview.DefaultFPS, cfg.Preview.MaxFPS, log,
	)
	audioService := services.NewAudioService(agentServer, registryService, collector, log)
	statusService := services.NewStatusService(registryService, catalogService, recordingService, previewService)
	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.OperatorID,
		cfg.Auth.OperatorKey,
		cfg.Auth.AccessTokenTTL,
	)

	agentServer.SetSinks(previewService, audioService)

	// Offline cleanup: when a client drops, its sessions are forced back to
	// idle and its capture refs released, in that order.
	registryService.AddLifecycleHook(recordingService)
	registryService.AddLifecycleHook(previewService)
	registryService.AddLifecycleHook(audioService)
	registryService.AddLifecycleHook(captureManager)

	registryService.StartSweeper(cfg.Agent.SweepInterval)
	defer registryService.StopSweeper()

	// Viewer transport
	viewerRegistry := viewer.NewRegistry()
	viewerServer := viewer.NewServer(viewerRegistry, previewService, audioService, viewer.ChannelOptions{
		QueueSize:        cfg.Preview.QueueSize,
		WriteTimeout:     cfg.Preview.WriteTimeout,
		MaxWriteFailures: cfg.Preview.MaxWriteFailures,
	}, cfg.Agent.PingInterval, cfg.Agent.PongTimeout, log)

	// Health checks
	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddRepositoryCheck(clientRepo, 30*time.Second, 2*time.Second)
	if redisClient := repoFactory.RedisClient(); redisClient != nil {
		healthChecker.AddRedisCheck(redisClient, 30*time.Second, 2*time.Second)
	}

	// Initialize HTTP handlers
	authHandler := httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL)
	clientHandler := httphandlers.NewClientHandler(registryService, agentServer)
	cameraHandler := httphandlers.NewCameraHandler(catalogService, recordingService, previewService, statusService, viewerRegistry)
	audioHandler := httphandlers.NewAudioHandler(audioService, viewerRegistry)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLoggerMiddleware(zapLogger))
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	// Public auth routes
	authHandler.SetupRoutes(router)

	// Operator API
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(authService))
	{
		clientHandler.SetupRoutes(api)
		cameraHandler.SetupRoutes(api)
		audioHandler.SetupRoutes(api)
	}

	// WebSocket endpoints. Agents authenticate out of band on the private
	// network; viewers are operator browsers holding a session already.
	router.GET("/ws/agent", gin.WrapF(agentServer.HandleWebSocket))
	router.GET("/ws/viewer", gin.WrapF(viewerServer.HandleWebSocket))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
			"clients":   len(agentServer.ConnectedClients()),
			"viewers":   viewerRegistry.Count(),
		})
	})

	// Readiness endpoint
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := healthChecker.CheckAll(ctx)
		if status.Status != "healthy" {
			c.JSON(503, status)
			return
		}
		c.JSON(200, status)
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting camfleet controller on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-quit:
		log.Infow("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("forced shutdown", "error", err)
	}

	log.Info("controller stopped")
}
