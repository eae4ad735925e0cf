package bootstrap

import (
	"context"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"analyzer-backend/internal/chat"
	"analyzer-backend/internal/jobs"
	"analyzer-backend/internal/llm"
	"analyzer-backend/internal/llm/command"
	openai "analyzer-backend/internal/llm/openai"
	"analyzer-backend/internal/pages"
	"analyzer-backend/internal/shared/config"
	"analyzer-backend/internal/shared/server"
	"analyzer-backend/internal/shared/storage/object"
	localstore "analyzer-backend/internal/shared/storage/object/local"
	miniostore "analyzer-backend/internal/shared/storage/object/minio"
	"analyzer-backend/internal/shared/telemetry"
	"analyzer-backend/internal/validate"
)

// App holds the wired dependency graph.
type App struct {
	Config config.Config
	Router *gin.Engine
	Store  object.ObjectStore

	JobsRegistry *jobs.Registry
	JobsService  *jobs.Service
	JobsHandler  *jobs.Handler

	ChatStore   chat.SessionStore
	ChatHandler *chat.Handler

	PagesHandler *pages.Handler
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	policy := validate.DefaultPolicy()
	if cfg.MaxUploadBytes > 0 {
		policy.MaxBytes = cfg.MaxUploadBytes
	}

	registry := jobs.NewRegistry()
	runner := &jobs.PipelineRunner{LLM: llmClient, MaxPromptChars: cfg.ChatContextMax}
	jobsSvc := jobs.NewService(registry, runner, store, policy, cfg.StageTimeout)
	jobsHandler := jobs.NewHandler(jobsSvc)

	chatStore := chat.SessionStore(chat.NewFileStore(cfg.SessionStoreDir))
	chatHandler := chat.NewHandler(llmClient, chatStore, reportResolver(jobsSvc))
	if cfg.ChatHistoryMax > 0 {
		chatHandler.HistoryMax = cfg.ChatHistoryMax
	}
	if cfg.ChatContextMax > 0 {
		chatHandler.ContextChars = cfg.ChatContextMax
	}

	pagesHandler := pages.NewHandler(cfg.WebDir)

	app := &App{
		Config:       cfg,
		Store:        store,
		JobsRegistry: registry,
		JobsService:  jobsSvc,
		JobsHandler:  jobsHandler,
		ChatStore:    chatStore,
		ChatHandler:  chatHandler,
		PagesHandler: pagesHandler,
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		AnalysisHandler: app.JobsHandler,
		ChatHandler:     app.ChatHandler,
		PagesHandler:    app.PagesHandler,
	})

	return app, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "minio":
		return miniostore.New(ctx, cfg.MinioEndpoint, cfg.MinioRegion, cfg.MinioBucket,
			cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if cfg.LLMProvider == "openai" {
		apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		if apiKey != "" {
			client, err := openai.NewClient(apiKey, cfg.LLMModel)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
		telemetry.Info("bootstrap.llm_fallback", map[string]any{
			"reason": "OPENAI_API_KEY empty; using command backend",
		})
	}
	return command.Bot{}, nil
}

// reportResolver maps a chat context reference to the finished report for
// that job. Unknown or unfinished jobs resolve to nothing.
func reportResolver(svc *jobs.Service) chat.ContextResolver {
	return func(ref string) (string, bool) {
		job, err := svc.Get(ref)
		if err != nil || job.Stage != jobs.StageCompleted {
			return "", false
		}
		return job.Report, true
	}
}
