package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/deskpilot/internal/api/handlers"
	"github.com/cloo-solutions/deskpilot/internal/config"
	"github.com/cloo-solutions/deskpilot/internal/database"
	"github.com/cloo-solutions/deskpilot/internal/domain"
	"github.com/cloo-solutions/deskpilot/internal/migrations"
	"github.com/cloo-solutions/deskpilot/internal/openai"
	"github.com/cloo-solutions/deskpilot/internal/repository"
	"github.com/cloo-solutions/deskpilot/internal/server"
	"github.com/cloo-solutions/deskpilot/internal/service"
	"github.com/cloo-solutions/deskpilot/internal/storage"
	"github.com/cloo-solutions/deskpilot/internal/telemetry"
	"github.com/cloo-solutions/deskpilot/internal/trace"
	"github.com/cloo-solutions/deskpilot/internal/websearch"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the deskpilot API server on the specified port",
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

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

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
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := migrations.Run(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	articleRepo := repository.NewArticleRepository(pool)
	chunkRepo := repository.NewArticleChunkRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	orgRepo := repository.NewOrgRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	if cfg.InitOrgName != "" {
		if err := bootstrapInitialOrg(ctx, cfg, orgRepo, apiKeyRepo); err != nil {
			return fmt.Errorf("failed to bootstrap initial org: %w", err)
		}
	}

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(orgRepo, apiKeyRepo, uuidGen)

	var traceClient *trace.Client
	if cfg.HasTracing() {
		traceClient = trace.NewClient(cfg.TraceEndpoint, cfg.TraceAPIKey)
		log.Println("run tracing enabled")
	}
	tracker := trace.NewTracker(traceClient, cfg.TraceProject)

	var archiver service.ResearchArchiver
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready for research artifacts", cfg.S3Bucket)
		archiver = s3Client
	}

	var searchClient service.WebSearcher
	if cfg.HasSearch() {
		searchClient = websearch.NewClient(cfg.SearchAPIKey, websearch.WithBaseURL(cfg.SearchBaseURL))
	} else {
		searchClient = &noSearchClient{}
		log.Println("web search not configured, research will use static fallbacks")
	}

	var (
		similarityHandler handlers.SimilarityService = &NoOpSimilarityService{}
		generationHandler handlers.GenerationService = &NoOpGenerationService{}
		embeddingHandler  handlers.EmbeddingService  = &NoOpEmbeddingService{}
		chatHandler       handlers.ChatResponseService
		deflectionSvc     handlers.DeflectionService
	)

	if cfg.HasOpenAI() {
		openaiClient := openai.NewClientWithConfig(openai.Config{
			APIKey:    cfg.OpenAIAPIKey,
			ChatModel: cfg.ChatModel,
		})

		similaritySvc := service.NewSimilarityServiceWithStrategy(
			openaiClient, chunkRepo, articleRepo, service.RankStrategy(cfg.RerankStrategy))
		similarityHandler = similaritySvc

		embeddingHandler = service.NewEmbeddingService(openaiClient, chunkRepo, uuidGen)

		scraperSvc := service.NewScraperService()
		researchSvc := service.NewResearchService(searchClient, openaiClient, orgRepo, scraperSvc, archiver)
		generationHandler = service.NewGenerationService(openaiClient, researchSvc, orgRepo, tracker)

		deflection := service.NewDeflectionService(
			txRunner, conversationRepo, messageRepo, similaritySvc,
			openaiClient, tracker, uuidGen, cfg.AIAssigneeID)
		deflectionSvc = deflection
		chatHandler = deflection
	} else {
		log.Println("OpenAI not configured, content pipeline endpoints are disabled")
		noop := &NoOpDeflectionService{}
		deflectionSvc = noop
		chatHandler = noop
	}

	pipelineHandler := handlers.NewPipelineHandler(similarityHandler, generationHandler, embeddingHandler, chatHandler)
	conversationHandler := handlers.NewConversationHandler(deflectionSvc, conversationRepo, uuidGen)
	authHandler := handlers.NewAuthHandler(authSvc)

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:       authSvc,
		PipelineHandler:     pipelineHandler,
		ConversationHandler: conversationHandler,
		AuthHandler:         authHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// noSearchClient stands in when no search API key is configured; the
// research service degrades to its static fallbacks.
type noSearchClient struct{}

func (c *noSearchClient) Search(ctx context.Context, query string, opts websearch.Options) ([]websearch.Result, error) {
	return nil, fmt.Errorf("web search not configured: DESKPILOT_SEARCH_API_KEY required")
}

type NoOpSimilarityService struct{}

func (s *NoOpSimilarityService) FindSimilarArticles(ctx context.Context, query, orgID string) ([]*service.RankedArticle, error) {
	return nil, domain.NewDomainError(domain.ErrCodeUpstream, "similarity search not configured: OPENAI_API_KEY required")
}

type NoOpGenerationService struct{}

func (s *NoOpGenerationService) GenerateEnhancedArticle(ctx context.Context, in service.GenerateArticleInput) (string, error) {
	return "", domain.NewDomainError(domain.ErrCodeUpstream, "article generation not configured: OPENAI_API_KEY required")
}

type NoOpEmbeddingService struct{}

func (s *NoOpEmbeddingService) StoreEmbeddings(ctx context.Context, articleID, content, orgID string) error {
	return domain.NewDomainError(domain.ErrCodeUpstream, "embedding storage not configured: OPENAI_API_KEY required")
}

type NoOpDeflectionService struct{}

func (s *NoOpDeflectionService) GenerateChatResponse(ctx context.Context, question, articleContent string) (string, error) {
	return "", domain.NewDomainError(domain.ErrCodeUpstream, "chat responses not configured: OPENAI_API_KEY required")
}

func (s *NoOpDeflectionService) HandleCustomerMessage(ctx context.Context, conversationID, content string) (*service.CustomerTurnResult, error) {
	return nil, domain.NewDomainError(domain.ErrCodeUpstream, "deflection not configured: OPENAI_API_KEY required")
}

func (s *NoOpDeflectionService) TransitionStatus(ctx context.Context, conversationID string, to domain.ConversationStatus) (*domain.Conversation, error) {
	return nil, domain.NewDomainError(domain.ErrCodeUpstream, "deflection not configured: OPENAI_API_KEY required")
}

func bootstrapInitialOrg(ctx context.Context, cfg *config.Config, orgRepo *repository.OrgRepository, apiKeyRepo *repository.APIKeyRepository) error {
	org, err := orgRepo.GetByName(ctx, cfg.InitOrgName)
	if err != nil && !errors.Is(err, domain.ErrOrganizationNotFound) {
		return fmt.Errorf("failed to check existing org: %w", err)
	}

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(orgRepo, apiKeyRepo, uuidGen)

	if org == nil {
		org, err = authSvc.CreateOrg(ctx, cfg.InitOrgName)
		if err != nil {
			return fmt.Errorf("failed to create org: %w", err)
		}
		log.Printf("bootstrap: created organization '%s' (id: %s)", org.Name, org.ID)
	} else {
		log.Printf("bootstrap: organization '%s' already exists (id: %s)", org.Name, org.ID)
	}

	if cfg.InitAPIKey != "" {
		if !service.IsValidAPIToken(cfg.InitAPIKey) {
			return fmt.Errorf("invalid DESKPILOT_INIT_API_KEY format (expected 'dpk_<64 hex chars>')")
		}

		existingKey, err := authSvc.GetAPIKeyByHash(ctx, cfg.InitAPIKey)
		if err == nil && existingKey != nil {
			log.Printf("bootstrap: API key already exists (id: %s)", existingKey.ID)
			return nil
		}

		if err := authSvc.CreateAPIKeyWithToken(ctx, org.ID, "bootstrap", cfg.InitAPIKey); err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}
		log.Printf("bootstrap: created API key")
	}

	return nil
}
