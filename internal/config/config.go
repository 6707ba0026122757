package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	AI         AIConfig
	Knowledge  KnowledgeConfig
	Pipeline   PipelineConfig
	Redis      RedisConfig
	Evaluation EvaluationConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type AIConfig struct {
	OpenAIAPIKey   string
	EmbeddingModel string
	ChatModel      string
}

type KnowledgeConfig struct {
	DataDir      string
	ArtifactsDir string
	ChunkSize    int
	ChunkOverlap int
	Watch        bool
	VectorStore  VectorStoreConfig
}

type VectorStoreConfig struct {
	Provider     string // flat | milvus
	IndexPath    string
	MetadataPath string
	Milvus       MilvusConfig
}

type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Database   string
	TLS        bool
	VectorSize int
	Distance   string
}

type PipelineConfig struct {
	TopK          int
	ContextBudget int
	AnswerCache   AnswerCacheConfig
}

type AnswerCacheConfig struct {
	Enabled bool
	TTL     int // 秒
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type EvaluationConfig struct {
	DatasetPath string
	ScoresPath  string
}

// AppConfig 全局配置实例
var AppConfig *Config

// GetAppConfig 获取全局配置
func GetAppConfig() *Config {
	return AppConfig
}

// LoadConfig 加载配置（默认值 + 环境变量覆盖）
func LoadConfig() error {
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")

	// AI配置默认值
	viper.SetDefault("ai.embedding_model", "text-embedding-3-large")
	viper.SetDefault("ai.chat_model", "gpt-4.1-mini")

	// 知识库配置默认值
	viper.SetDefault("knowledge.data_dir", "./data/raw")
	viper.SetDefault("knowledge.artifacts_dir", "./artifacts")
	viper.SetDefault("knowledge.chunk_size", 800)
	viper.SetDefault("knowledge.chunk_overlap", 200)
	viper.SetDefault("knowledge.watch", false)
	viper.SetDefault("knowledge.vector_store.provider", "flat")
	viper.SetDefault("knowledge.vector_store.milvus.address", "localhost:19530")
	viper.SetDefault("knowledge.vector_store.milvus.collection", "policy_chunks")
	viper.SetDefault("knowledge.vector_store.milvus.database", "default")
	viper.SetDefault("knowledge.vector_store.milvus.tls", false)
	viper.SetDefault("knowledge.vector_store.milvus.vector_size", 3072)
	viper.SetDefault("knowledge.vector_store.milvus.distance", "l2")

	// 检索与流水线配置默认值
	viper.SetDefault("pipeline.top_k", 6)
	viper.SetDefault("pipeline.context_budget", 6000)
	viper.SetDefault("pipeline.answer_cache.enabled", false)
	viper.SetDefault("pipeline.answer_cache.ttl", 300)

	// Redis配置默认值
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.db", 0)

	// 读取环境变量
	viper.SetEnvPrefix("COMPLIANCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 兼容历史环境变量命名
	if port := os.Getenv("PORT"); port != "" {
		viper.Set("server.port", port)
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("ai.openai_api_key", apiKey)
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		viper.Set("ai.embedding_model", model)
	}
	if model := os.Getenv("CHAT_MODEL"); model != "" {
		viper.Set("ai.chat_model", model)
	}
	if size := os.Getenv("CHUNK_SIZE"); size != "" {
		viper.Set("knowledge.chunk_size", size)
	}
	if overlap := os.Getenv("CHUNK_OVERLAP"); overlap != "" {
		viper.Set("knowledge.chunk_overlap", overlap)
	}
	if topK := os.Getenv("TOP_K"); topK != "" {
		viper.Set("pipeline.top_k", topK)
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		viper.Set("knowledge.data_dir", dataDir)
	}
	if artifactsDir := os.Getenv("ARTIFACTS_DIR"); artifactsDir != "" {
		viper.Set("knowledge.artifacts_dir", artifactsDir)
	}
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		viper.Set("redis.host", redisHost)
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		viper.Set("redis.port", redisPort)
	}

	artifactsDir := viper.GetString("knowledge.artifacts_dir")

	AppConfig = &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		AI: AIConfig{
			OpenAIAPIKey:   viper.GetString("ai.openai_api_key"),
			EmbeddingModel: viper.GetString("ai.embedding_model"),
			ChatModel:      viper.GetString("ai.chat_model"),
		},
		Knowledge: KnowledgeConfig{
			DataDir:      viper.GetString("knowledge.data_dir"),
			ArtifactsDir: artifactsDir,
			ChunkSize:    viper.GetInt("knowledge.chunk_size"),
			ChunkOverlap: viper.GetInt("knowledge.chunk_overlap"),
			Watch:        viper.GetBool("knowledge.watch"),
			VectorStore: VectorStoreConfig{
				Provider:     viper.GetString("knowledge.vector_store.provider"),
				IndexPath:    filepath.Join(artifactsDir, "vector_index.gob"),
				MetadataPath: filepath.Join(artifactsDir, "metadata.json"),
				Milvus: MilvusConfig{
					Address:    viper.GetString("knowledge.vector_store.milvus.address"),
					Username:   viper.GetString("knowledge.vector_store.milvus.username"),
					Password:   viper.GetString("knowledge.vector_store.milvus.password"),
					Collection: viper.GetString("knowledge.vector_store.milvus.collection"),
					Database:   viper.GetString("knowledge.vector_store.milvus.database"),
					TLS:        viper.GetBool("knowledge.vector_store.milvus.tls"),
					VectorSize: viper.GetInt("knowledge.vector_store.milvus.vector_size"),
					Distance:   viper.GetString("knowledge.vector_store.milvus.distance"),
				},
			},
		},
		Pipeline: PipelineConfig{
			TopK:          viper.GetInt("pipeline.top_k"),
			ContextBudget: viper.GetInt("pipeline.context_budget"),
			AnswerCache: AnswerCacheConfig{
				Enabled: viper.GetBool("pipeline.answer_cache.enabled"),
				TTL:     viper.GetInt("pipeline.answer_cache.ttl"),
			},
		},
		Redis: RedisConfig{
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetString("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Evaluation: EvaluationConfig{
			DatasetPath: filepath.Join(artifactsDir, "ragas_dataset.json"),
			ScoresPath:  filepath.Join(artifactsDir, "ragas_scores.json"),
		},
	}

	return nil
}
