package knowledge

import "context"

// ChunkMeta 分块元数据，入库后不可变
type ChunkMeta struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	PolicyID string `json:"policy_id"`
	ChunkID  int    `json:"chunk_id"` // 文档内的分块序号，仅在单个文档内唯一
}

// RetrievalResult 检索结果：分块元数据加相似度得分
// 对基于距离的索引，得分越小越相关
type RetrievalResult struct {
	ChunkMeta
	Score float64 `json:"score"`
}

// IndexStats 索引统计信息
type IndexStats struct {
	NumVectors int `json:"num_vectors"`
	VectorDim  int `json:"vector_dim"`
}

// VectorStore 向量存储抽象。
// 向量与元数据按位置一一对应，写入只追加；
// 写入（Add）与检索（Search）的并发交错需要调用方串行化。
type VectorStore interface {
	// Add 追加一批向量及其元数据。首批固定索引维度，
	// 后续批次维度不一致时整批拒绝，已存数据不受影响。
	Add(ctx context.Context, vectors [][]float32, metas []ChunkMeta) error
	// Search 返回至多k条结果，按相似度排序（距离升序）。
	// 空索引返回空结果，不报错。
	Search(ctx context.Context, query []float32, k int) ([]RetrievalResult, error)
	// Reset 清空全部向量与元数据，维度回到未固定状态。
	// 全量重建入库前调用，避免追加写入产生重复分块。
	Reset(ctx context.Context) error
	// Save 将索引与元数据持久化
	Save(ctx context.Context) error
	// Load 从持久化存储恢复索引与元数据
	Load(ctx context.Context) error
	// Stats 返回当前向量数与维度
	Stats() IndexStats
	Ready() bool
}
