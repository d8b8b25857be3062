package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor/model"
)

type fakeIndex struct {
	docs      []model.Document
	searchErr error
	gotQuery  string
	gotK      int
	closed    bool
}

func (f *fakeIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]model.Document, error) {
	f.gotQuery, f.gotK = query, k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.docs, nil
}

func (f *fakeIndex) Close() error {
	f.closed = true
	return nil
}

type fakeBackend struct {
	index      *fakeIndex
	connectErr error
	panicMsg   string
	gotParams  model.IndexParams
}

func (b *fakeBackend) Connect(ctx context.Context, p model.IndexParams) (model.Index, error) {
	if b.panicMsg != "" {
		panic(b.panicMsg)
	}
	b.gotParams = p
	if b.connectErr != nil {
		return nil, b.connectErr
	}
	return b.index, nil
}

func creds() model.Credentials {
	return model.Credentials{LLMKey: "llm", IndexKey: "ikey", IndexName: "algorithms", EmbeddingModel: "nomic-embed-text"}
}

func call(args map[string]any) model.ToolCall {
	return model.ToolCall{ID: "c1", Name: ToolName, Args: args}
}

func TestDeclaration(t *testing.T) {
	decl := Declaration()
	assert.Equal(t, "retrieve", decl.Name)
	assert.ElementsMatch(t,
		[]string{ArgQuery, ArgIndexAPIKey, ArgIndexName, ArgEmbeddingModel},
		decl.InputSchema.Required)
	assert.Contains(t, decl.InputSchema.Properties, ArgQuery)
}

func TestRunSerializesHits(t *testing.T) {
	idx := &fakeIndex{docs: []model.Document{
		{Content: "CS201 requires CS101.", Metadata: map[string]string{"source": "syllabus.pdf", "page": "2"}},
		{Content: "Office hours on Fridays.", Metadata: map[string]string{"source": "info.txt"}},
	}}
	backend := &fakeBackend{index: idx}

	res := NewTool(backend).Run(context.Background(), call(map[string]any{"query": "prerequisites course X"}), creds())

	assert.Equal(t,
		"Source: map[page:2 source:syllabus.pdf]\nContent: CS201 requires CS101.\n\n"+
			"Source: map[source:info.txt]\nContent: Office hours on Fridays.",
		res.Content)
	assert.Len(t, res.Artifact, 2)
	assert.False(t, res.Failed())
	assert.Equal(t, "prerequisites course X", idx.gotQuery)
	assert.Equal(t, TopK, idx.gotK)
	assert.True(t, idx.closed)
	assert.Equal(t, model.IndexParams{APIKey: "ikey", IndexName: "algorithms", EmbeddingModel: "nomic-embed-text"}, backend.gotParams)
}

func TestRunNoHitsIsNotAnError(t *testing.T) {
	res := NewTool(&fakeBackend{index: &fakeIndex{}}).Run(context.Background(), call(map[string]any{"query": "x"}), creds())
	assert.Equal(t, "", res.Content)
	assert.Empty(t, res.Artifact)
	assert.False(t, res.Failed())
}

func TestRunFailuresAreEncoded(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		args    map[string]any
		creds   model.Credentials
		want    string
	}{
		{
			name:    "connection error",
			backend: &fakeBackend{connectErr: fmt.Errorf("%w: dial tcp: connection refused", model.ErrConnection)},
			args:    map[string]any{"query": "x"},
			creds:   creds(),
			want:    "connection refused",
		},
		{
			name:    "search error",
			backend: &fakeBackend{index: &fakeIndex{searchErr: errors.New("index timed out")}},
			args:    map[string]any{"query": "x"},
			creds:   creds(),
			want:    "index timed out",
		},
		{
			name:    "missing query",
			backend: &fakeBackend{index: &fakeIndex{}},
			args:    map[string]any{},
			creds:   creds(),
			want:    "query",
		},
		{
			name:    "missing index credentials",
			backend: &fakeBackend{index: &fakeIndex{}},
			args:    map[string]any{"query": "x"},
			creds:   model.Credentials{LLMKey: "llm"},
			want:    "index_api_key",
		},
		{
			name:    "backend panic",
			backend: &fakeBackend{panicMsg: "nil map"},
			args:    map[string]any{"query": "x"},
			creds:   creds(),
			want:    "nil map",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res Result
			require.NotPanics(t, func() {
				res = NewTool(tt.backend).Run(context.Background(), call(tt.args), tt.creds)
			})
			assert.True(t, strings.HasPrefix(res.Content, ErrorMarker+" "), res.Content)
			assert.Contains(t, res.Content, tt.want)
			assert.Empty(t, res.Artifact)
			assert.True(t, res.Failed())
		})
	}
}

func TestParamsPreferSessionCredentials(t *testing.T) {
	tool := NewTool(nil)
	query, p, err := tool.Params(map[string]any{
		"query":           " sorting ",
		"index_api_key":   "from-model",
		"index_name":      "hallucinated",
		"embedding_model": "other",
	}, creds())
	require.NoError(t, err)
	assert.Equal(t, "sorting", query)
	assert.Equal(t, "ikey", p.APIKey)
	assert.Equal(t, "algorithms", p.IndexName)
	assert.Equal(t, "nomic-embed-text", p.EmbeddingModel)

	_, p, err = tool.Params(map[string]any{"query": "q", "index_name": "physics"}, model.Credentials{IndexKey: "k", EmbeddingModel: "m"})
	require.NoError(t, err)
	assert.Equal(t, "physics", p.IndexName)

	_, _, err = tool.Params(map[string]any{"query": 7}, creds())
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestMarkerHelpers(t *testing.T) {
	content := ErrorMarker + " connection error: index unreachable"
	assert.True(t, IsError(content))
	assert.Equal(t, "connection error: index unreachable", StripMarker(content))
	assert.False(t, IsError("Source: map[]\nContent: x"))
	assert.Equal(t, "retrieval failed: Tool Error inside", StripMarker(ErrorMarker+" retrieval failed: Tool Error inside"))
}

func TestHitMentioningMarkerIsNotAnError(t *testing.T) {
	idx := &fakeIndex{docs: []model.Document{
		{Content: "A Tool Error in the linker means a missing symbol.", Metadata: map[string]string{"source": "build.md"}},
	}}

	res := NewTool(&fakeBackend{index: idx}).Run(context.Background(), call(map[string]any{"query": "linker errors"}), creds())

	assert.False(t, res.Failed())
	assert.False(t, IsError(res.Content))
	assert.Contains(t, res.Content, "A Tool Error in the linker")
}
