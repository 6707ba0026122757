package di

import (
	"fmt"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/config"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/database"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/knowledge"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/logger"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/services"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	// 注册配置
	if err := container.Provide(func() (*config.Config, error) {
		cfg := config.GetAppConfig()
		if cfg == nil {
			return nil, fmt.Errorf("config not loaded")
		}
		return cfg, nil
	}); err != nil {
		return err
	}

	// 注册日志器
	if err := container.Provide(func() *zap.Logger {
		return logger.GetLogger()
	}); err != nil {
		return err
	}

	// 注册分块器
	if err := container.Provide(func(cfg *config.Config) *knowledge.Chunker {
		return knowledge.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	}); err != nil {
		return err
	}

	// 注册文件解析器
	if err := container.Provide(knowledge.NewFileParserManager); err != nil {
		return err
	}

	// 注册嵌入向量生成器
	if err := container.Provide(func(cfg *config.Config) knowledge.Embedder {
		return knowledge.NewOpenAIEmbedder(cfg.AI.OpenAIAPIKey, cfg.AI.EmbeddingModel)
	}); err != nil {
		return err
	}

	// 注册补全客户端
	if err := container.Provide(func(cfg *config.Config) knowledge.CompletionClient {
		return knowledge.NewOpenAICompletion(cfg.AI.OpenAIAPIKey, cfg.AI.ChatModel)
	}); err != nil {
		return err
	}

	// 注册向量存储（按配置选择后端）
	if err := container.Provide(func(cfg *config.Config, log *zap.Logger) (knowledge.VectorStore, error) {
		vs := cfg.Knowledge.VectorStore
		switch vs.Provider {
		case "milvus":
			return knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
				Address:    vs.Milvus.Address,
				Username:   vs.Milvus.Username,
				Password:   vs.Milvus.Password,
				Collection: vs.Milvus.Collection,
				Database:   vs.Milvus.Database,
				UseTLS:     vs.Milvus.TLS,
				VectorSize: vs.Milvus.VectorSize,
				Distance:   vs.Milvus.Distance,
			}, log)
		case "", "flat":
			return knowledge.NewFlatVectorStore(vs.IndexPath, vs.MetadataPath, log), nil
		default:
			return nil, fmt.Errorf("unknown vector store provider: %s", vs.Provider)
		}
	}); err != nil {
		return err
	}

	// 注册服务
	if err := container.Provide(services.NewDocumentService); err != nil {
		return err
	}

	if err := container.Provide(func(store knowledge.VectorStore, embedder knowledge.Embedder, completion knowledge.CompletionClient, cfg *config.Config, log *zap.Logger) *services.RAGService {
		return services.NewRAGService(store, embedder, completion, cfg.Pipeline.TopK, cfg.Pipeline.ContextBudget, log)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(cfg *config.Config, log *zap.Logger) *services.AnswerCache {
		return services.NewAnswerCache(
			database.RedisClient,
			cfg.Pipeline.AnswerCache.Enabled,
			time.Duration(cfg.Pipeline.AnswerCache.TTL)*time.Second,
			log,
		)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(cfg *config.Config, log *zap.Logger) *services.EvaluationService {
		return services.NewEvaluationService(cfg.Evaluation.DatasetPath, cfg.Evaluation.ScoresPath, log)
	}); err != nil {
		return err
	}

	if err := container.Provide(services.NewMetricsService); err != nil {
		return err
	}

	return nil
}
