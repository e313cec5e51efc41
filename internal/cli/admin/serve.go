package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/api/handlers"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/audit"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/config"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/database"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/jobs"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/knowledge"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/openai"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/prompt"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/repository"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/retrieval"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/server"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/service"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/telemetry"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/verifier"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/websearch"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the sishelper API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	sentryEnabled := false
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			sentryEnabled = true
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required to run the generation pipeline")
	}

	gateway := openai.NewClientWithConfig(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		Timeout: time.Duration(cfg.ModelTimeoutSeconds) * time.Second,
	})

	store, err := loadKnowledgeStore(cfg)
	if err != nil {
		return err
	}

	var searcher websearch.Searcher
	if cfg.HasWebSearch() {
		searcher = websearch.NewClient(websearch.Config{
			Endpoint: cfg.SearchEndpoint,
			APIKey:   cfg.SearchAPIKey,
		})
		log.Println("web search collaborator configured")
	}

	retriever := retrieval.NewRetriever(store, searcher, retrieval.Config{
		MaxSources:           cfg.MaxSources,
		MinRelevance:         cfg.MinRelevance,
		MinSourceReliability: cfg.MinSourceReliability,
		MaxSourceAgeDays:     cfg.MaxSourceAgeDays,
		TemporalFiltering:    true,
		CacheCapacity:        cfg.CacheCapacity,
		CacheTTL:             time.Duration(cfg.CacheTTLSeconds) * time.Second,
	})

	var auditStore audit.Storage = audit.NewMemoryStore(cfg.AuditRingSize)

	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		log.Println("connected to database")

		// Run migrations unless --no-migrate flag is set
		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		auditStore = repository.NewAuditRepository(pool)
		retriever.WithSemantic(gateway, repository.NewGroundingRepository(pool))
		log.Println("semantic grounding path enabled")
	}

	var auditLogger *audit.Logger
	if sentryEnabled {
		auditLogger = audit.NewLoggerWithCapture(auditStore, func(err error) {
			telemetry.CaptureError(ctx, err)
		})
	} else {
		auditLogger = audit.NewLogger(auditStore)
	}

	assembler := prompt.NewAssembler(cfg.MaxContextLength)
	fieldVerifier := verifier.New(cfg.CriticalConfidenceThreshold)

	pipeline := service.NewPipelineService(retriever, assembler, gateway, fieldVerifier, auditLogger, service.PipelineConfig{
		MaxSources:          cfg.MaxSources,
		MinRelevance:        cfg.MinRelevance,
		ConsensusCandidates: cfg.ConsensusCandidates,
	})
	if cfg.ConsensusEnabled() {
		log.Printf("consensus mode enabled with %d candidates", cfg.ConsensusCandidates)
	}

	maintenance := jobs.NewMaintenanceWorker(retriever, auditLogger, cfg.AuditRingSize)
	worker := jobs.NewWorker(maintenance, time.Minute)
	go worker.Start(ctx)

	routerCfg := server.RouterConfig{
		TaskHandler:  handlers.NewTaskHandler(pipeline),
		AuditHandler: handlers.NewAuditHandler(auditLogger),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func loadKnowledgeStore(cfg *config.Config) (*knowledge.Store, error) {
	if cfg.KnowledgeFile == "" {
		log.Println("no knowledge file configured, starting with an empty store")
		return knowledge.NewStore(nil)
	}

	store, err := knowledge.LoadFile(cfg.KnowledgeFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge store: %w", err)
	}
	log.Printf("loaded %d knowledge entries from %s", len(store.All()), cfg.KnowledgeFile)
	return store, nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
