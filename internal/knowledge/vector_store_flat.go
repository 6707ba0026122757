package knowledge

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/kunledollar/multiagent-policy-compliance-rag/internal/errors"
)

// FlatVectorStore 进程内精确向量索引。
// 向量行与元数据列表按位置对齐，追加写入；
// 检索为全量L2距离扫描，距离升序返回。
// 持久化为两个文件：向量行（gob）与元数据列表（JSON），
// 均采用临时文件加原子重命名写入，加载时校验两者行数对齐。
type FlatVectorStore struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
	metas     []ChunkMeta

	indexPath string
	metaPath  string
	logger    *zap.Logger
}

// flatIndexFile 向量行落盘结构
type flatIndexFile struct {
	Dimension int
	Vectors   [][]float32
}

// NewFlatVectorStore 创建进程内向量存储
func NewFlatVectorStore(indexPath, metaPath string, logger *zap.Logger) *FlatVectorStore {
	if logger == nil {
		logger = zap.L()
	}
	return &FlatVectorStore{
		indexPath: indexPath,
		metaPath:  metaPath,
		logger:    logger,
	}
}

// Add 追加一批向量及其元数据。
// 首批固定维度；维度不一致时整批拒绝，不产生部分写入。
func (s *FlatVectorStore) Add(ctx context.Context, vectors [][]float32, metas []ChunkMeta) error {
	if len(vectors) != len(metas) {
		return apperrors.NewValidationError(
			fmt.Sprintf("vectors and metadata length mismatch: %d != %d", len(vectors), len(metas)))
	}
	if len(vectors) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	if dim == 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return apperrors.NewValidationError("cannot index zero-width vectors")
		}
	}

	// 先整批校验再写入，保证拒绝时已存数据不变
	for _, v := range vectors {
		if len(v) != dim {
			return apperrors.NewDimensionMismatchError(dim, len(v))
		}
	}

	s.dimension = dim
	for i, v := range vectors {
		row := make([]float32, len(v))
		copy(row, v)
		s.vectors = append(s.vectors, row)
		s.metas = append(s.metas, metas[i])
	}

	return nil
}

// Search 全量扫描，按L2平方距离升序返回至多k条结果。
// 空索引或未初始化时返回空结果。
func (s *FlatVectorStore) Search(ctx context.Context, query []float32, k int) ([]RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension == 0 || len(s.vectors) == 0 || k <= 0 {
		return []RetrievalResult{}, nil
	}
	if len(query) != s.dimension {
		return nil, apperrors.NewDimensionMismatchError(s.dimension, len(query))
	}

	type scoredRow struct {
		idx   int
		score float64
	}

	scored := make([]scoredRow, 0, len(s.vectors))
	for i, row := range s.vectors {
		// 行宽异常视为无效行，静默跳过
		if len(row) != s.dimension {
			continue
		}
		scored = append(scored, scoredRow{idx: i, score: squaredL2(query, row)})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score == scored[j].score {
			return scored[i].idx < scored[j].idx
		}
		return scored[i].score < scored[j].score
	})

	if k > len(scored) {
		k = len(scored)
	}

	results := make([]RetrievalResult, 0, k)
	for _, row := range scored[:k] {
		results = append(results, RetrievalResult{
			ChunkMeta: s.metas[row.idx],
			Score:     row.score,
		})
	}
	return results, nil
}

// Reset 清空索引，维度回到未固定状态
func (s *FlatVectorStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dimension = 0
	s.vectors = nil
	s.metas = nil
	return nil
}

// Save 持久化向量行与元数据列表。
// 两个文件都先写临时文件再原子重命名，避免崩溃留下半写状态。
func (s *FlatVectorStore) Save(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.indexPath), 0o755); err != nil {
		return apperrors.NewPersistenceError("failed to create artifacts directory").WithCause(err)
	}

	if err := s.writeIndexFile(); err != nil {
		return err
	}
	if err := s.writeMetaFile(); err != nil {
		return err
	}

	s.logger.Info("vector index saved",
		zap.Int("num_vectors", len(s.vectors)),
		zap.Int("vector_dim", s.dimension),
		zap.String("index_path", s.indexPath))
	return nil
}

func (s *FlatVectorStore) writeIndexFile() error {
	tmp := s.indexPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return apperrors.NewPersistenceError("failed to create index file").WithCause(err)
	}

	enc := gob.NewEncoder(f)
	if err := enc.Encode(flatIndexFile{Dimension: s.dimension, Vectors: s.vectors}); err != nil {
		f.Close()
		os.Remove(tmp)
		return apperrors.NewPersistenceError("failed to encode index file").WithCause(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return apperrors.NewPersistenceError("failed to close index file").WithCause(err)
	}
	if err := os.Rename(tmp, s.indexPath); err != nil {
		os.Remove(tmp)
		return apperrors.NewPersistenceError("failed to commit index file").WithCause(err)
	}
	return nil
}

func (s *FlatVectorStore) writeMetaFile() error {
	payload, err := json.MarshalIndent(s.metas, "", "  ")
	if err != nil {
		return apperrors.NewPersistenceError("failed to encode metadata").WithCause(err)
	}

	tmp := s.metaPath + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return apperrors.NewPersistenceError("failed to write metadata file").WithCause(err)
	}
	if err := os.Rename(tmp, s.metaPath); err != nil {
		os.Remove(tmp)
		return apperrors.NewPersistenceError("failed to commit metadata file").WithCause(err)
	}
	return nil
}

// Load 从磁盘恢复索引与元数据。
// 两个文件都不存在时保持空索引；行数不对齐时报持久化不一致错误。
func (s *FlatVectorStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var index flatIndexFile
	indexExists, err := loadGobFile(s.indexPath, &index)
	if err != nil {
		return apperrors.NewPersistenceError("failed to read index file").WithCause(err)
	}

	var metas []ChunkMeta
	metaExists, err := loadJSONFile(s.metaPath, &metas)
	if err != nil {
		return apperrors.NewPersistenceError("failed to read metadata file").WithCause(err)
	}

	if !indexExists && !metaExists {
		s.logger.Info("no persisted vector index found, starting empty")
		return nil
	}

	if len(index.Vectors) != len(metas) {
		return apperrors.NewPersistenceError(
			fmt.Sprintf("index and metadata out of sync: %d vectors vs %d metadata records",
				len(index.Vectors), len(metas)))
	}

	s.dimension = index.Dimension
	s.vectors = index.Vectors
	s.metas = metas

	s.logger.Info("vector index loaded",
		zap.Int("num_vectors", len(s.vectors)),
		zap.Int("vector_dim", s.dimension))
	return nil
}

// Stats 返回当前向量数与维度
func (s *FlatVectorStore) Stats() IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return IndexStats{
		NumVectors: len(s.vectors),
		VectorDim:  s.dimension,
	}
}

// Ready 进程内存储总是可用
func (s *FlatVectorStore) Ready() bool {
	return true
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func loadGobFile(path string, target interface{}) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(target); err != nil {
		return true, err
	}
	return true, nil
}

func loadJSONFile(path string, target interface{}) (bool, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return true, err
	}
	return true, nil
}
