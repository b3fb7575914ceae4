package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/config"
	"github.com/veritas-ai/veritas/humanloop"
)

func TestBuildRetriever_IndexesCorpus(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plants.txt"),
		[]byte("photosynthesis converts light into chemical energy"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"),
		[]byte("chlorophyll absorbs red and blue light"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.json"),
		[]byte("{}"), 0o644))

	retriever, err := buildRetriever(config.RetrievalConfig{
		CorpusDir: dir,
		TopK:      5,
		MinScore:  0.0,
	}, zap.NewNop())
	require.NoError(t, err)

	result, err := retriever.Query(context.Background(), "how does photosynthesis work")
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalResults)
	assert.Contains(t, result.Context, "photosynthesis")
}

func TestBuildRetriever_MissingCorpusDir(t *testing.T) {
	_, err := buildRetriever(config.RetrievalConfig{CorpusDir: "/does/not/exist"}, zap.NewNop())
	assert.Error(t, err)
}

func TestBuildValidationStore(t *testing.T) {
	store, err := buildValidationStore(humanloop.Config{})
	require.NoError(t, err)
	assert.IsType(t, &humanloop.MemoryStore{}, store)

	dbPath := filepath.Join(t.TempDir(), "validations.db")
	gormStore, err := buildValidationStore(humanloop.Config{StorePath: dbPath})
	require.NoError(t, err)
	assert.IsType(t, &humanloop.GormStore{}, gormStore)
}

func TestBuildCache_Memory(t *testing.T) {
	cfg := config.DefaultConfig()
	store, err := buildCache(cfg, zap.NewNop())
	require.NoError(t, err)
	n, err := store.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
