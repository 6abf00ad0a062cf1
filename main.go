package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/fabriq-inc/fabriq-engine/pkg/config"
	"github.com/fabriq-inc/fabriq-engine/pkg/database"
	"github.com/fabriq-inc/fabriq-engine/pkg/geometry"
	"github.com/fabriq-inc/fabriq-engine/pkg/handlers"
	"github.com/fabriq-inc/fabriq-engine/pkg/llm"
	"github.com/fabriq-inc/fabriq-engine/pkg/logging"
	"github.com/fabriq-inc/fabriq-engine/pkg/materials"
	"github.com/fabriq-inc/fabriq-engine/pkg/middleware"
	"github.com/fabriq-inc/fabriq-engine/pkg/repositories"
	"github.com/fabriq-inc/fabriq-engine/pkg/services"
	"github.com/fabriq-inc/fabriq-engine/pkg/workerpool"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Log startup configuration
	log.Printf("Configuration loaded:")
	log.Printf("  Environment: %s", cfg.Env)
	log.Printf("  Database: %s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	log.Printf("  Redis: %s:%d", cfg.Redis.Host, cfg.Redis.Port)
	log.Printf("  Vision: %s (%s)", cfg.Vision.Provider, cfg.Vision.Model)

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	table, err := materials.Load()
	if err != nil {
		log.Fatalf("Failed to load material tables: %v", err)
	}

	visionClient, err := llm.NewVisionClient(&llm.ProviderConfig{
		Provider: cfg.Vision.Provider,
		Endpoint: cfg.Vision.Endpoint,
		Model:    cfg.Vision.Model,
		APIKey:   cfg.Vision.APIKey,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create vision client: %v", err)
	}

	// Repositories
	geometryRepo := repositories.NewGeometryRepository(db)
	annotationRepo := repositories.NewAnnotationRepository(db)
	estimationRepo := repositories.NewEstimationRepository(db)
	partRepo := repositories.NewPartRepository(db)
	quoteRepo := repositories.NewQuoteRepository(db)
	cache := repositories.NewEstimationCache(redisClient, logger)

	// Services. No native kernel binding ships with this build; geometry
	// always comes from the deterministic fallback until one is linked in.
	fallback := geometry.NewFallbackGenerator(logger)
	var extractor geometry.Extractor
	pool := workerpool.New(workerpool.Config{MaxConcurrent: cfg.Pipeline.ExtractorWorkers}, logger)

	interpreter := services.NewDrawingInterpreter(
		visionClient,
		time.Duration(cfg.Vision.TimeoutSeconds)*time.Second,
		cfg.Vision.MaxRetries,
		logger)
	reconciler := services.NewReconciler(logger)
	classifier := geometry.NewConstraintClassifier(logger)
	estimator := services.NewTimeEstimator(table, logger)

	pipeline := services.NewEstimationPipeline(
		extractor, fallback, interpreter, reconciler, classifier, estimator,
		geometryRepo, annotationRepo, estimationRepo, cache, pool, logger)

	mux := http.NewServeMux()

	// Register handlers
	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	estimationsHandler := handlers.NewEstimationsHandler(pipeline, logger)
	estimationsHandler.RegisterRoutes(mux)

	partsHandler := handlers.NewPartsHandler(partRepo, table, logger)
	partsHandler.RegisterRoutes(mux)

	quotesHandler := handlers.NewQuotesHandler(quoteRepo, partRepo, logger)
	quotesHandler.RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	log.Printf("Starting fabriq-engine on %s (version: %s)", addr, cfg.Version)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
