package services

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/kunledollar/multiagent-policy-compliance-rag/internal/errors"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/knowledge"
)

// DocumentService 文档入库服务。
// 遍历目录、解析文件、清洗分块、批量嵌入并写入向量索引。
// 入库操作整体串行：同一时间只允许一次入库，避免与检索交错写入。
type DocumentService struct {
	store    knowledge.VectorStore
	embedder knowledge.Embedder
	chunker  *knowledge.Chunker
	parser   *knowledge.FileParserManager
	logger   *zap.Logger

	mu sync.Mutex // 串行化入库
}

// IngestReport 一次入库的结果汇总
type IngestReport struct {
	NumFiles   int `json:"num_files"`
	NumSkipped int `json:"num_skipped"`
	NumChunks  int `json:"num_chunks"`
}

// NewDocumentService 创建文档入库服务
func NewDocumentService(store knowledge.VectorStore, embedder knowledge.Embedder, chunker *knowledge.Chunker, parser *knowledge.FileParserManager, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.L()
	}
	return &DocumentService{
		store:    store,
		embedder: embedder,
		chunker:  chunker,
		parser:   parser,
		logger:   logger,
	}
}

// IngestDirectory 递归入库目录下所有受支持的策略文档（追加写入）。
// 单个文件解析失败会记录并跳过，不中断整批；
// 没有任何可入库内容时返回错误。
func (s *DocumentService) IngestDirectory(ctx context.Context, dir string) (*IngestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ingestLocked(ctx, dir)
}

// RebuildDirectory 清空索引后全量重新入库。
// 目录监听触发的重入库走这里，重复执行不会累积重复分块。
func (s *DocumentService) RebuildDirectory(ctx context.Context, dir string) (*IngestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Reset(ctx); err != nil {
		return nil, err
	}
	return s.ingestLocked(ctx, dir)
}

func (s *DocumentService) ingestLocked(ctx context.Context, dir string) (*IngestReport, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, apperrors.NewValidationError("ingest directory does not exist").WithCause(err)
	}

	s.logger.Info("starting ingestion", zap.String("directory", dir))

	report := &IngestReport{}
	var texts []string
	var metas []knowledge.ChunkMeta

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !s.parser.Supports(path) {
			return nil
		}

		chunks, perr := s.parseAndChunk(path)
		if perr != nil {
			s.logger.Warn("failed to process file, skipping",
				zap.String("file", path), zap.Error(perr))
			report.NumSkipped++
			ingestedFiles.WithLabelValues("skipped").Inc()
			return nil
		}

		policyID := derivePolicyID(path)
		for _, chunk := range chunks {
			texts = append(texts, chunk.Text)
			metas = append(metas, knowledge.ChunkMeta{
				Text:     chunk.Text,
				Source:   path,
				PolicyID: policyID,
				ChunkID:  chunk.Index,
			})
		}

		report.NumFiles++
		ingestedFiles.WithLabelValues("ok").Inc()
		return nil
	})
	if walkErr != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeIngestFailed, "failed to walk ingest directory").WithCause(walkErr)
	}

	if len(texts) == 0 {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeEmptyCorpus, "no supported files found for ingestion")
	}

	s.logger.Info("generating embeddings", zap.Int("num_chunks", len(texts)))
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	if err := s.store.Add(ctx, vectors, metas); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx); err != nil {
		return nil, err
	}

	report.NumChunks = len(texts)
	ingestedChunks.Add(float64(len(texts)))
	s.logger.Info("ingestion complete",
		zap.Int("num_files", report.NumFiles),
		zap.Int("num_skipped", report.NumSkipped),
		zap.Int("num_chunks", report.NumChunks))
	return report, nil
}

// parseAndChunk 解析单个文件并切分
func (s *DocumentService) parseAndChunk(path string) ([]knowledge.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := s.parser.ParseFile(f, path)
	if err != nil {
		return nil, err
	}

	return s.chunker.Split(raw), nil
}

// derivePolicyID 从文件名导出策略编号：取文件主名下划线前的第一段
func derivePolicyID(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.Index(stem, "_"); i >= 0 {
		return stem[:i]
	}
	return stem
}
