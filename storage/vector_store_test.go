package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor/model"
)

// keywordEmbedder maps text onto three axes so similarity is predictable.
type keywordEmbedder struct {
	calls    int
	fail     error
	badModel string
}

func (e *keywordEmbedder) Embed(ctx context.Context, modelName string, texts []string) ([][]float32, error) {
	e.calls++
	if e.fail != nil {
		return nil, e.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		t = strings.ToLower(t)
		out[i] = []float32{
			float32(strings.Count(t, "graph")),
			float32(strings.Count(t, "sort")),
			float32(strings.Count(t, "tree")) + 0.01,
		}
	}
	return out, nil
}

func (e *keywordEmbedder) ValidateModel(ctx context.Context, name string) error {
	if name == e.badModel {
		return errors.New("model not found")
	}
	return nil
}

func params() model.IndexParams {
	return model.IndexParams{APIKey: "secret", IndexName: "algorithms", EmbeddingModel: "nomic-embed-text"}
}

func seededStore(t *testing.T) (*VectorStore, *keywordEmbedder) {
	t.Helper()
	emb := &keywordEmbedder{}
	store := NewVectorStore(filepath.Join(t.TempDir(), "indexes"), emb)

	ix, err := store.Create(context.Background(), params())
	require.NoError(t, err)
	defer ix.Close()

	docs := []model.Document{
		{Content: "Graph traversal: BFS and DFS on a graph", Metadata: map[string]string{"source": "graphs.txt"}},
		{Content: "Merge sort and quick sort", Metadata: map[string]string{"source": "sorting.txt"}},
		{Content: "Binary search tree rotations", Metadata: map[string]string{"source": "trees.txt"}},
		{Content: "Heap sort builds a tree", Metadata: map[string]string{"source": "sorting.txt"}},
	}
	n, err := ix.AddDocuments(context.Background(), docs)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	return store, emb
}

func TestVectorStoreSimilaritySearch(t *testing.T) {
	store, _ := seededStore(t)

	ix, err := store.Connect(context.Background(), params())
	require.NoError(t, err)
	defer ix.Close()

	hits, err := ix.SimilaritySearch(context.Background(), "how does sort work", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "Merge sort and quick sort", hits[0].Content)
	assert.Equal(t, "sorting.txt", hits[0].Metadata["source"])
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}

	none, err := ix.SimilaritySearch(context.Background(), "x", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestVectorStoreSkipsDuplicates(t *testing.T) {
	store, _ := seededStore(t)
	ix, err := store.Open(context.Background(), params())
	require.NoError(t, err)
	defer ix.Close()

	n, err := ix.AddDocuments(context.Background(), []model.Document{
		{Content: "Merge sort and quick sort", Metadata: map[string]string{"source": "sorting.txt"}},
		{Content: "Merge sort and quick sort", Metadata: map[string]string{"source": "other.txt"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := ix.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestVectorStoreConnectErrors(t *testing.T) {
	store, emb := seededStore(t)

	tests := []struct {
		name    string
		params  model.IndexParams
		wantErr error
	}{
		{name: "missing key", params: model.IndexParams{IndexName: "algorithms", EmbeddingModel: "m"}, wantErr: model.ErrConfiguration},
		{name: "missing name", params: model.IndexParams{APIKey: "k", EmbeddingModel: "m"}, wantErr: model.ErrConfiguration},
		{name: "missing model", params: model.IndexParams{APIKey: "k", IndexName: "algorithms"}, wantErr: model.ErrConfiguration},
		{name: "bad name", params: model.IndexParams{APIKey: "k", IndexName: "../etc", EmbeddingModel: "m"}, wantErr: model.ErrConfiguration},
		{name: "unknown index", params: model.IndexParams{APIKey: "secret", IndexName: "physics", EmbeddingModel: "nomic-embed-text"}, wantErr: model.ErrConnection},
		{name: "wrong key", params: model.IndexParams{APIKey: "nope", IndexName: "algorithms", EmbeddingModel: "nomic-embed-text"}, wantErr: model.ErrConnection},
		{name: "wrong model", params: model.IndexParams{APIKey: "secret", IndexName: "algorithms", EmbeddingModel: "other"}, wantErr: model.ErrConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := emb.calls
			_, err := store.Connect(context.Background(), tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, calls, emb.calls, "no embedding call on connect")
		})
	}
}

func TestVectorStoreConnectUnavailableModel(t *testing.T) {
	store, emb := seededStore(t)
	emb.badModel = "nomic-embed-text"

	_, err := store.Connect(context.Background(), params())
	assert.ErrorIs(t, err, model.ErrConnection)
	assert.ErrorContains(t, err, "embedding model unavailable")
}

func TestVectorStoreSearchEmbeddingFailure(t *testing.T) {
	store, emb := seededStore(t)
	ix, err := store.Connect(context.Background(), params())
	require.NoError(t, err)
	defer ix.Close()

	emb.fail = errors.New("connection refused")
	_, err = ix.SimilaritySearch(context.Background(), "sort", 3)
	assert.ErrorIs(t, err, model.ErrConnection)
}

func TestVectorStoreCreateTwice(t *testing.T) {
	store, _ := seededStore(t)
	_, err := store.Create(context.Background(), params())
	assert.ErrorIs(t, err, ErrIndexExists)

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"algorithms"}, names)
	assert.True(t, store.Exists("algorithms"))
	assert.False(t, store.Exists("../algorithms"))
}

func TestVectorRoundTripAndCosine(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.InDelta(t, 1.0, cosine(v, v), 1e-9)
	assert.Equal(t, 0.0, cosine(v, []float32{1}))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}))
}
