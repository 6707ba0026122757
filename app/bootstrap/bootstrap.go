package bootstrap

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/config"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/database"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/di"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/knowledge"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/logger"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/services"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error

	store             knowledge.VectorStore
	documentService   *services.DocumentService
	ragService        *services.RAGService
	answerCache       *services.AnswerCache
	evaluationService *services.EvaluationService
	metricsService    *services.MetricsService
	watcher           *services.WatcherService
}

// GetVectorStore returns the vector store instance
func (a *App) GetVectorStore() knowledge.VectorStore {
	return a.store
}

// GetDocumentService returns the document ingestion service
func (a *App) GetDocumentService() *services.DocumentService {
	return a.documentService
}

// GetRAGService returns the question answering pipeline service
func (a *App) GetRAGService() *services.RAGService {
	return a.ragService
}

// GetAnswerCache returns the answer cache instance
func (a *App) GetAnswerCache() *services.AnswerCache {
	return a.answerCache
}

// GetEvaluationService returns the evaluation service
func (a *App) GetEvaluationService() *services.EvaluationService {
	return a.evaluationService
}

// GetMetricsService returns the metrics service
func (a *App) GetMetricsService() *services.MetricsService {
	return a.metricsService
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance
func SetGlobalApp(app *App) {
	globalApp = app
}

// Init bootstraps configuration, logger, the vector index and other shared
// infrastructure components required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	app := &App{}

	// Initialize Redis (optional). Failure shouldn't block the app.
	if config.AppConfig.Pipeline.AnswerCache.Enabled {
		if _, err := database.InitRedis(); err != nil {
			logger.Warn("Failed to initialize Redis, answer cache disabled", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				return database.CloseRedis()
			})
		}
	}

	// Build the dependency graph.
	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, err
	}

	err := container.Invoke(func(
		store knowledge.VectorStore,
		documentService *services.DocumentService,
		ragService *services.RAGService,
		answerCache *services.AnswerCache,
		evaluationService *services.EvaluationService,
		metricsService *services.MetricsService,
	) {
		app.store = store
		app.documentService = documentService
		app.ragService = ragService
		app.answerCache = answerCache
		app.evaluationService = evaluationService
		app.metricsService = metricsService
	})
	if err != nil {
		return nil, err
	}

	// Restore the persisted vector index if artifacts exist.
	if err := app.store.Load(context.Background()); err != nil {
		return nil, err
	}
	stats := app.store.Stats()
	logger.Info("vector index loaded",
		zap.Int("num_vectors", stats.NumVectors),
		zap.Int("vector_dim", stats.VectorDim))

	// Start the data directory watcher (optional).
	if config.AppConfig.Knowledge.Watch {
		watcher := services.NewWatcherService(app.documentService, config.AppConfig.Knowledge.DataDir, logger.GetLogger())
		if err := watcher.Start(context.Background()); err != nil {
			logger.Warn("Failed to start directory watcher", zap.Error(err))
		} else {
			app.watcher = watcher
			app.cleanupTasks = append(app.cleanupTasks, watcher.Stop)
		}
	}

	return app, nil
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	// Flush logger buffers.
	logger.Sync()
}
