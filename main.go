package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"renovisio_backend/analyzer"
	"renovisio_backend/brief"
	"renovisio_backend/catalog"
	"renovisio_backend/conditioning"
	"renovisio_backend/core"
	"renovisio_backend/core/validation"
	"renovisio_backend/db"
	"renovisio_backend/generation"
	"renovisio_backend/handlers"
	"renovisio_backend/logging"
	"renovisio_backend/metrics"
	"renovisio_backend/pipeline"
	"renovisio_backend/shutdown"
	"renovisio_backend/store"
	"renovisio_backend/validator"
)

// stopRequests lets the Windows service wrapper trigger the same drain
// path as an interrupt signal.
var stopRequests = make(chan struct{}, 1)

func requestStop() {
	select {
	case stopRequests <- struct{}{}:
	default:
	}
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Use fmt here since logger isn't initialized yet
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Service control commands (install/uninstall/start/stop) exit here
	if HandleServiceCommand(os.Args[1:]) {
		return
	}

	// When launched by the Windows service manager, RunAsService blocks
	// until the service is stopped.
	if ranAsService, err := RunAsService(); err != nil {
		fmt.Printf("Service startup failed: %v\n", err)
		os.Exit(core.ExitCodeError)
	} else if ranAsService {
		return
	}

	os.Exit(runApplication())
}

// runApplication wires the full pipeline and serves until a shutdown
// signal arrives. It returns the process exit code so the service
// wrapper and main can share the same path.
func runApplication() int {
	isDevelopment := os.Getenv("DEV_MODE") == "true"

	logger, err := logging.NewLogger(isDevelopment, "app.log")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Printf("Failed to sync logger: %v\n", syncErr)
		}
	}()

	config, err := core.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return core.ExitCodeError
	}

	// Startup validation before heavy wiring
	result := validation.NewSuite(config).Validate()
	if !result.Success {
		logger.Error("Startup validation failed",
			zap.Int("passed", result.PassedSteps),
			zap.Int("failed", result.FailedSteps),
			zap.Duration("duration", result.Duration))
		for _, step := range result.Steps {
			if step.Status == validation.StepFailed {
				logger.Error("Validation step failed",
					zap.String("step", step.Name),
					zap.String("message", step.Message),
					zap.Error(step.Error))
			}
		}
		return core.ExitCodeError
	}

	logger.Info("Configuration loaded",
		zap.String("image_model", config.OpenAIImageModel),
		zap.String("vision_model", config.OpenAIVisionModel),
		zap.Int("max_concepts", config.MaxConcepts),
		zap.Duration("pipeline_timeout", config.PipelineTimeout),
		zap.Duration("ai_timeout", config.AITimeout),
		zap.Bool("depth", config.DepthEnabled()),
		zap.Bool("edge", config.EdgeEnabled()),
		zap.Bool("refinement", config.EnableRefinement),
		zap.Bool("analyzer", config.EnableAnalyzer),
		zap.String("artifact_dir", config.ArtifactDir),
		zap.String("database", config.DatabasePath),
		zap.Int("port", config.Port),
		zap.Bool("dev_mode", isDevelopment),
	)

	manager := shutdown.NewManager(logger)

	// Database, migrations, async metrics writer
	database, err := db.NewDatabaseWithConfig(db.DatabaseConfig{
		Path:           config.DatabasePath,
		MigrationsPath: config.MigrationsPath,
	})
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))
		return core.ExitCodeError
	}
	if err := database.Migrate(); err != nil {
		logger.Error("Failed to apply migrations", zap.Error(err))
		database.Close()
		return core.ExitCodeError
	}

	writerRepo := db.NewRepository(database, nil)
	asyncWriter := db.NewAsyncWriter(writerRepo.CreateAsyncWriteHandler())
	asyncWriter.Start()
	repo := db.NewRepository(database, asyncWriter)

	database.StartCleanupScheduler(manager.Context(), db.CleanupSchedulerConfig{
		RetentionDays: config.MetricsRetentionDays,
		Interval:      db.DefaultCleanupSchedulerConfig().Interval,
	}, func(res db.CleanupResult, err error) {
		if err != nil {
			logger.Warn("metrics retention pass failed", zap.Error(err))
			return
		}
		if res.MetricsDeleted > 0 {
			logger.Info("metrics retention pass complete",
				zap.Int64("deleted", res.MetricsDeleted))
		}
	})

	// Room type and style catalog
	cat := catalog.New()
	if config.StyleCatalogPath != "" {
		fromFile, err := catalog.NewFromFile(config.StyleCatalogPath)
		if err != nil {
			logger.Warn("style catalog unreadable, using built-in catalog",
				zap.String("path", config.StyleCatalogPath), zap.Error(err))
		} else {
			cat = fromFile
		}
	}

	// Vision-model collaborators share one client
	visionClient := newVisionClient(config)

	var roomAnalyzer pipeline.RoomAnalyzer
	if config.EnableAnalyzer {
		analyzerConfig := analyzer.DefaultConfig()
		analyzerConfig.Model = config.OpenAIVisionModel
		analyzerConfig.Timeout = config.AITimeout
		roomAnalyzer = analyzer.New(analyzerConfig, visionClient, logger)
	}

	var structureValidator pipeline.StructureValidator
	if config.EnableRefinement {
		validatorConfig := validator.DefaultConfig()
		validatorConfig.Model = config.OpenAIVisionModel
		validatorConfig.Timeout = config.AITimeout
		structureValidator = validator.New(validatorConfig, visionClient, logger)
	}

	// Conditioning extractors, each behind its own toggle
	var extractors []conditioning.Extractor
	if config.DepthEnabled() {
		depthConfig := conditioning.EstimatorConfig{
			URL:     config.DepthEstimatorURL,
			Timeout: config.DepthTimeout,
			Enabled: true,
		}
		extractors = append(extractors,
			conditioning.NewDepthEstimator(depthConfig, core.GetHTTPClient(config, config.DepthTimeout), logger))
	}
	if config.EdgeEnabled() {
		edgeConfig := conditioning.EstimatorConfig{
			URL:     config.EdgeEstimatorURL,
			Timeout: config.EdgeTimeout,
			Enabled: true,
		}
		extractors = append(extractors,
			conditioning.NewEdgeEstimator(edgeConfig, core.GetHTTPClient(config, config.EdgeTimeout), logger))
	}

	// Image generation provider (OpenAI or Azure, from configuration)
	provider, err := generation.NewProviderFromConfig(config)
	if err != nil {
		logger.Error("Failed to configure image generation", zap.Error(err))
		database.Close()
		return core.ExitCodeError
	}
	downloader := generation.NewDownloader(generation.DefaultDownloaderConfig())
	conceptGenerator := generation.NewGenerator(provider, downloader, logger)

	// Artifact storage; failure degrades to inline image references
	var artifacts store.ArtifactStore
	if diskStore, err := store.NewDiskStore(config.ArtifactDir, config.ArtifactBaseURL, logger); err != nil {
		logger.Warn("artifact store unavailable, images will be returned inline", zap.Error(err))
	} else {
		artifacts = diskStore
	}

	recorder := metrics.NewRecorder(repo, logger)

	orchestrator := pipeline.New(pipeline.Deps{
		Catalog:    cat,
		Analyzer:   roomAnalyzer,
		Extractors: extractors,
		Generator:  conceptGenerator,
		Validator:  structureValidator,
		Artifacts:  artifacts,
		Records:    repo,
		Metrics:    recorder,
		Logger:     logger,
	}, pipeline.Options{
		MaxConcepts:       config.MaxConcepts,
		Timeout:           config.PipelineTimeout,
		EnableRefinement:  config.EnableRefinement,
		StructureStrength: config.StructureStrength,
		StyleStrength:     config.StyleStrength,
		MaxImageBytes:     config.MaxImageBytes,
	})

	briefs := brief.New(brief.DefaultConfig(), logger)

	apiConfig := handlers.DefaultAPIConfig()
	apiConfig.MaxConcepts = config.MaxConcepts
	api := handlers.NewVisualizationAPI(orchestrator, repo, briefs, apiConfig, logger)

	serverConfig := handlers.DefaultServerConfig()
	serverConfig.Port = config.Port
	serverConfig.ArtifactDir = config.ArtifactDir
	if config.PipelineTimeout > serverConfig.WriteTimeout {
		serverConfig.WriteTimeout = config.PipelineTimeout + serverConfig.ReadTimeout
	}
	server := handlers.NewServer(serverConfig, api, logger)

	// Cleanup handlers run in priority order: server first so no new
	// requests arrive, then the metrics writer, then the database.
	manager.Register("http_server", 10, func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})
	manager.Register("async_writer", 20, func(ctx context.Context) error {
		asyncWriter.Stop()
		return nil
	})
	manager.Register("database", 30, func(ctx context.Context) error {
		return database.Close()
	})
	manager.Register("artifact_temp", 45, shutdown.CleanupArtifactTemp(logger, config.ArtifactDir))

	manager.Start()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", server.Addr()))
		serverErr <- server.Start()
	}()

	exitCode := core.ExitCodeSuccess
	select {
	case <-manager.Context().Done():
	case <-stopRequests:
		logger.Info("Stop requested by service manager")
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
			exitCode = core.ExitCodeError
		}
	}

	if err := manager.Shutdown(); err != nil {
		logger.Error("Shutdown finished with errors", zap.Error(err))
		exitCode = core.ExitCodeError
	}

	logger.Info("Goodbye!")
	return exitCode
}

// newVisionClient builds the OpenAI client shared by the analyzer and
// the structure validator.
func newVisionClient(cfg *core.Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.VisionLLMURL != "" {
		clientConfig.BaseURL = cfg.VisionLLMURL
	}
	clientConfig.HTTPClient = core.GetHTTPClient(cfg, cfg.AITimeout)
	return openai.NewClientWithConfig(clientConfig)
}
