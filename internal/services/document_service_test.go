package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/kunledollar/multiagent-policy-compliance-rag/internal/errors"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/knowledge"
)

func newIngestFixture(t *testing.T) (*DocumentService, knowledge.VectorStore, string) {
	artifacts := t.TempDir()
	store := knowledge.NewFlatVectorStore(
		filepath.Join(artifacts, "vector_index.gob"),
		filepath.Join(artifacts, "metadata.json"),
		zap.NewNop(),
	)

	svc := NewDocumentService(
		store,
		&fakeEmbedder{dim: 3},
		knowledge.NewChunker(50, 10),
		knowledge.NewFileParserManager(),
		zap.NewNop(),
	)

	dataDir := t.TempDir()
	return svc, store, dataDir
}

func TestIngestDirectory(t *testing.T) {
	svc, store, dataDir := newIngestFixture(t)

	require.NoError(t, os.WriteFile(
		filepath.Join(dataDir, "HR001_leave_policy.txt"),
		[]byte("Employees accrue leave at a fixed monthly rate. Unused leave expires after 18 months."),
		0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(dataDir, "SEC002_access.md"),
		[]byte("Production access requires written manager approval."),
		0o644))
	// 不支持的格式应被直接忽略
	require.NoError(t, os.WriteFile(
		filepath.Join(dataDir, "notes.xlsx"),
		[]byte("binary-ish"),
		0o644))

	report, err := svc.IngestDirectory(context.Background(), dataDir)
	require.NoError(t, err)

	assert.Equal(t, 2, report.NumFiles)
	assert.Equal(t, 0, report.NumSkipped)
	assert.Greater(t, report.NumChunks, 0)

	stats := store.Stats()
	assert.Equal(t, report.NumChunks, stats.NumVectors)
	assert.Equal(t, 3, stats.VectorDim)
}

func TestIngestDirectoryPersistsArtifacts(t *testing.T) {
	artifacts := t.TempDir()
	indexPath := filepath.Join(artifacts, "vector_index.gob")
	metaPath := filepath.Join(artifacts, "metadata.json")
	store := knowledge.NewFlatVectorStore(indexPath, metaPath, zap.NewNop())

	svc := NewDocumentService(
		store,
		&fakeEmbedder{dim: 3},
		knowledge.NewChunker(50, 10),
		knowledge.NewFileParserManager(),
		zap.NewNop(),
	)

	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dataDir, "FIN003_expense.txt"),
		[]byte("Expenses above 500 euros require pre-approval."),
		0o644))

	_, err := svc.IngestDirectory(context.Background(), dataDir)
	require.NoError(t, err)

	_, err = os.Stat(indexPath)
	require.NoError(t, err)
	_, err = os.Stat(metaPath)
	require.NoError(t, err)
}

func TestIngestDirectoryMissing(t *testing.T) {
	svc, _, _ := newIngestFixture(t)

	_, err := svc.IngestDirectory(context.Background(), "/nonexistent/policies")
	require.Error(t, err)
	assert.True(t, apperrors.IsAppError(err))
}

func TestIngestDirectoryEmptyCorpus(t *testing.T) {
	svc, _, dataDir := newIngestFixture(t)

	_, err := svc.IngestDirectory(context.Background(), dataDir)
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	assert.Equal(t, apperrors.ErrCodeEmptyCorpus, appErr.Code)
}

func TestRebuildDirectoryDoesNotDuplicate(t *testing.T) {
	svc, store, dataDir := newIngestFixture(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(
		filepath.Join(dataDir, "HR001_leave_policy.txt"),
		[]byte("Employees accrue leave at a fixed monthly rate."),
		0o644))

	first, err := svc.IngestDirectory(ctx, dataDir)
	require.NoError(t, err)
	require.Equal(t, first.NumChunks, store.Stats().NumVectors)

	// 文件变更触发的全量重入库先清空索引，向量数不随重复执行增长
	second, err := svc.RebuildDirectory(ctx, dataDir)
	require.NoError(t, err)
	assert.Equal(t, first.NumChunks, second.NumChunks)
	assert.Equal(t, first.NumChunks, store.Stats().NumVectors)

	third, err := svc.RebuildDirectory(ctx, dataDir)
	require.NoError(t, err)
	assert.Equal(t, first.NumChunks, third.NumChunks)
	assert.Equal(t, first.NumChunks, store.Stats().NumVectors)
}

func TestDerivePolicyID(t *testing.T) {
	assert.Equal(t, "HR001", derivePolicyID("data/raw/HR001_leave_policy.txt"))
	assert.Equal(t, "SEC002", derivePolicyID("SEC002_access_control.md"))
	assert.Equal(t, "policy", derivePolicyID("/tmp/policy.pdf"))
}
