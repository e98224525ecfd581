package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/jobs"
	"tailor-backend/internal/llm"
	"tailor-backend/internal/llm/bedrock"
	"tailor-backend/internal/llm/openai"
	"tailor-backend/internal/queue"
	"tailor-backend/internal/shared/config"
	"tailor-backend/internal/shared/server"
	"tailor-backend/internal/shared/storage/db"
	"tailor-backend/internal/shared/storage/object"
	localstore "tailor-backend/internal/shared/storage/object/local"
	s3store "tailor-backend/internal/shared/storage/object/s3"
	"tailor-backend/internal/uploads"
)

// JobProcessor abstracts job execution for the worker entrypoint.
type JobProcessor interface {
	Process(ctx context.Context, jobID string) error
}

// App wires configuration, storage, services, and handlers together. Both
// the API server and the queue worker build the same App so job processing
// behaves identically regardless of where it runs.
type App struct {
	Config config.Config
	Router *gin.Engine

	DB     *sql.DB
	Store  object.ObjectStore
	Signer object.LinkSigner
	Queue  queue.Client

	UploadsRepo uploads.Repo
	JobsRepo    jobs.Repo

	UploadsService *uploads.Service
	JobsService    *jobs.Service

	// JobProcessor overrides JobsService for message handling; tests use it.
	JobProcessor JobProcessor

	UploadsHandler *uploads.Handler
	JobsHandler    *jobs.Handler
}

// Build constructs the application from configuration.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()
	app := &App{Config: cfg}

	if err := buildDB(ctx, cfg, app); err != nil {
		return nil, err
	}
	if err := buildStore(ctx, cfg, app); err != nil {
		return nil, err
	}
	if err := buildQueue(ctx, cfg, app); err != nil {
		return nil, err
	}
	if err := buildServices(cfg, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         cfg,
		UploadsHandler: app.UploadsHandler,
		JobsHandler:    app.JobsHandler,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config, app *App) error {
	if cfg.DatabaseURL == "" {
		if isDevLike(cfg.Env) {
			log.Printf("DATABASE_URL not set; using in-memory repositories")
			return nil
		}
		return fmt.Errorf("DATABASE_URL is required when ENV=%s", cfg.Env)
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	conn, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("database unavailable, falling back to memory: %v", err)
			return nil
		}
		return fmt.Errorf("connect database: %w", err)
	}
	if err := db.RunMigrations(ctx, conn); err != nil {
		conn.Close()
		if isDevLike(cfg.Env) {
			log.Printf("migrations failed, falling back to memory: %v", err)
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}
	app.DB = conn
	return nil
}

func buildStore(ctx context.Context, cfg config.Config, app *App) error {
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.JobsBucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return fmt.Errorf("build s3 store: %w", err)
		}
		app.Store = store
		app.Signer = store
	default:
		store := localstore.New(cfg.LocalStoreDir)
		app.Store = store
		app.Signer = store
	}
	return nil
}

func buildQueue(ctx context.Context, cfg config.Config, app *App) error {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		// No queue configured: the API processes jobs in-process.
		return nil
	}
	client, err := queue.NewSQSClient(ctx)
	if err != nil {
		return fmt.Errorf("build sqs client: %w", err)
	}
	app.Queue = client
	return nil
}

func buildServices(cfg config.Config, app *App) error {
	if app.DB != nil {
		app.UploadsRepo = &uploads.PGRepo{DB: app.DB}
		app.JobsRepo = &jobs.PGRepo{DB: app.DB}
	} else {
		app.UploadsRepo = uploads.NewMemoryRepo()
		app.JobsRepo = jobs.NewMemoryRepo()
	}

	catalog := llm.NewCatalog(cfg.AllowedOpenAIModels, cfg.AllowedBedrockModels)
	clients, defaultClient, err := buildLLMClients(cfg, catalog)
	if err != nil {
		return err
	}

	app.UploadsService = &uploads.Service{
		Repo:  app.UploadsRepo,
		Store: app.Store,
	}
	app.JobsService = &jobs.Service{
		Repo:        app.JobsRepo,
		Uploads:     app.UploadsRepo,
		Store:       app.Store,
		Signer:      app.Signer,
		Queue:       app.Queue,
		LLM:         defaultClient,
		Clients:     clients,
		Catalog:     catalog,
		Provider:    cfg.LLMProvider,
		Model:       cfg.LLMModel,
		DownloadTTL: time.Duration(cfg.DownloadTTLSeconds) * time.Second,
	}

	app.UploadsHandler = uploads.NewHandler(app.UploadsService)
	app.JobsHandler = jobs.NewHandler(app.JobsService)
	return nil
}

// buildLLMClients constructs one client per reachable provider so jobs
// dispatch on the provider they were submitted with. The default
// provider's client is also returned separately; it must exist outside
// dev-like environments.
func buildLLMClients(cfg config.Config, catalog *llm.Catalog) (map[string]llm.Client, llm.Client, error) {
	clients := make(map[string]llm.Client)

	if apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); apiKey != "" {
		client, err := openai.NewClient(apiKey, providerModel(cfg, catalog, llm.ProviderOpenAI))
		if err != nil {
			return nil, nil, fmt.Errorf("build openai client: %w", err)
		}
		clients[llm.ProviderOpenAI] = client
	} else if cfg.LLMProvider == llm.ProviderOpenAI && !isDevLike(cfg.Env) {
		return nil, nil, fmt.Errorf("OPENAI_API_KEY is required for provider %q", cfg.LLMProvider)
	}

	if client, err := bedrock.NewClient(context.Background(), cfg.BedrockRegion, providerModel(cfg, catalog, llm.ProviderBedrock)); err != nil {
		if cfg.LLMProvider == llm.ProviderBedrock && !isDevLike(cfg.Env) {
			return nil, nil, fmt.Errorf("build bedrock client: %w", err)
		}
		log.Printf("bedrock client unavailable: %v", err)
	} else {
		clients[llm.ProviderBedrock] = client
	}

	defaultClient := clients[cfg.LLMProvider]
	if defaultClient == nil {
		log.Printf("no LLM client for provider %q; using placeholder", cfg.LLMProvider)
		defaultClient = llm.PlaceholderClient{}
	}
	return clients, defaultClient, nil
}

// providerModel picks the client's fallback model: the configured one
// for the default provider, the first allowed model otherwise.
func providerModel(cfg config.Config, catalog *llm.Catalog, provider string) string {
	if provider == cfg.LLMProvider && cfg.LLMModel != "" {
		return cfg.LLMModel
	}
	if models, err := catalog.ModelsFor(provider); err == nil && len(models) > 0 {
		return models[0]
	}
	return cfg.LLMModel
}

func isDevLike(env string) bool {
	return env == "dev" || env == "local"
}
