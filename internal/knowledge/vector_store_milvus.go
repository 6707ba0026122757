package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	apperrors "github.com/kunledollar/multiagent-policy-compliance-rag/internal/errors"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Database   string
	UseTLS     bool
	VectorSize int
	Distance   string
	Timeout    time.Duration
}

// milvusVectorStore 基于Milvus的向量存储后端。
// 维度由配置固定而非首批写入推断；Save对应Flush，Load对应LoadCollection。
type milvusVectorStore struct {
	milvusClient client.Client
	collection   string
	vectorSize   int
	distance     string
	logger       *zap.Logger
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions, logger *zap.Logger) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "policy_chunks"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 3072
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	if logger == nil {
		logger = zap.L()
	}

	milvusClient, err := client.NewClient(
		context.Background(),
		client.Config{
			Address:       opts.Address,
			DBName:        opts.Database,
			Username:      opts.Username,
			Password:      opts.Password,
			EnableTLSAuth: opts.UseTLS,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{
		milvusClient: milvusClient,
		collection:   opts.Collection,
		vectorSize:   opts.VectorSize,
		distance:     formatMilvusDistance(opts.Distance),
		logger:       logger,
	}, nil
}

func formatMilvusDistance(value string) string {
	switch strings.ToUpper(value) {
	case "DOT", "IP", "INNER_PRODUCT":
		return "IP"
	case "COSINE":
		return "COSINE"
	default:
		return "L2"
	}
}

func (s *milvusVectorStore) metricType() entity.MetricType {
	return entity.MetricType(s.distance)
}

// milvusScoreToDistance 统一得分方向：全系统约定得分越小越相关。
// IP与COSINE下Milvus返回相似度（越大越相关），取负转为距离序；L2本身就是距离。
func milvusScoreToDistance(metric string, score float32) float64 {
	switch metric {
	case "IP", "COSINE":
		return -float64(score)
	default:
		return float64(score)
	}
}

func (s *milvusVectorStore) ensureCollection(ctx context.Context) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if hasCollection {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: s.collection,
		Description:    "Policy document chunk vectors",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "policy_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "chunk_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", s.vectorSize),
				},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	var index entity.Index
	index, err = entity.NewIndexHNSW(s.metricType(), 32, 40)
	if err != nil {
		index, err = entity.NewIndexIvfFlat(s.metricType(), 128)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	if err := s.milvusClient.CreateIndex(ctx, s.collection, "vector", index, false); err != nil {
		s.logger.Warn("failed to create milvus index", zap.Error(err))
	}

	return nil
}

// Add 追加一批向量及其元数据
func (s *milvusVectorStore) Add(ctx context.Context, vectors [][]float32, metas []ChunkMeta) error {
	if len(vectors) != len(metas) {
		return apperrors.NewValidationError(
			fmt.Sprintf("vectors and metadata length mismatch: %d != %d", len(vectors), len(metas)))
	}
	if len(vectors) == 0 {
		return nil
	}

	for _, v := range vectors {
		if len(v) != s.vectorSize {
			return apperrors.NewDimensionMismatchError(s.vectorSize, len(v))
		}
	}

	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	sources := make([]string, len(metas))
	policyIDs := make([]string, len(metas))
	chunkIDs := make([]int64, len(metas))
	texts := make([]string, len(metas))
	for i, m := range metas {
		sources[i] = m.Source
		policyIDs[i] = m.PolicyID
		chunkIDs[i] = int64(m.ChunkID)
		texts[i] = m.Text
	}

	_, err := s.milvusClient.Insert(ctx, s.collection, "",
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("policy_id", policyIDs),
		entity.NewColumnInt64("chunk_id", chunkIDs),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnFloatVector("vector", s.vectorSize, vectors),
	)
	if err != nil {
		return apperrors.NewProviderError("milvus", err)
	}

	return nil
}

// Search 返回至多k条结果，按Milvus得分排序
func (s *milvusVectorStore) Search(ctx context.Context, query []float32, k int) ([]RetrievalResult, error) {
	if len(query) == 0 || k <= 0 {
		return []RetrievalResult{}, nil
	}

	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return nil, apperrors.NewProviderError("milvus", err)
	}
	if !hasCollection {
		return []RetrievalResult{}, nil
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collection,
		[]string{},
		"",
		[]string{"source", "policy_id", "chunk_id", "text"},
		[]entity.Vector{entity.FloatVector(query)},
		"vector",
		s.metricType(),
		k,
		sp,
	)
	if err != nil {
		return nil, apperrors.NewProviderError("milvus", err)
	}
	if len(searchResults) == 0 {
		return []RetrievalResult{}, nil
	}

	result := searchResults[0]
	if result.Err != nil {
		return nil, apperrors.NewProviderError("milvus", result.Err)
	}
	if result.ResultCount == 0 {
		return []RetrievalResult{}, nil
	}

	var sources, policyIDs, texts []string
	var chunkIDs []int64
	for _, field := range result.Fields {
		switch field.Name() {
		case "source":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				sources = col.Data()
			}
		case "policy_id":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				policyIDs = col.Data()
			}
		case "chunk_id":
			if col, ok := field.(*entity.ColumnInt64); ok {
				chunkIDs = col.Data()
			}
		case "text":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				texts = col.Data()
			}
		}
	}

	results := make([]RetrievalResult, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		meta := ChunkMeta{}
		if i < len(sources) {
			meta.Source = sources[i]
		}
		if i < len(policyIDs) {
			meta.PolicyID = policyIDs[i]
		}
		if i < len(chunkIDs) {
			meta.ChunkID = int(chunkIDs[i])
		}
		if i < len(texts) {
			meta.Text = texts[i]
		}

		score := float64(0)
		if i < len(result.Scores) {
			score = milvusScoreToDistance(s.distance, result.Scores[i])
		}

		results = append(results, RetrievalResult{ChunkMeta: meta, Score: score})
	}

	return results, nil
}

// Reset 删除集合，下次写入时按配置重建
func (s *milvusVectorStore) Reset(ctx context.Context) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return apperrors.NewProviderError("milvus", err)
	}
	if !hasCollection {
		return nil
	}
	if err := s.milvusClient.DropCollection(ctx, s.collection); err != nil {
		return apperrors.NewProviderError("milvus", err)
	}
	return nil
}

// Save 刷新集合，确保数据落盘
func (s *milvusVectorStore) Save(ctx context.Context) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil || !hasCollection {
		return nil
	}
	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		return apperrors.NewProviderError("milvus", err)
	}
	return nil
}

// Load 将集合加载到内存，供检索使用
func (s *milvusVectorStore) Load(ctx context.Context) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return apperrors.NewProviderError("milvus", err)
	}
	if !hasCollection {
		return nil
	}
	if err := s.milvusClient.LoadCollection(ctx, s.collection, false); err != nil {
		return apperrors.NewProviderError("milvus", err)
	}
	return nil
}

// Stats 返回集合的行数与配置维度
func (s *milvusVectorStore) Stats() IndexStats {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats := IndexStats{VectorDim: s.vectorSize}
	raw, err := s.milvusClient.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return stats
	}
	if count, ok := raw["row_count"]; ok {
		fmt.Sscanf(count, "%d", &stats.NumVectors)
	}
	return stats
}

// Ready 检查Milvus连接是否可用
func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}
