package model

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Document is one chunk of indexed course material.
type Document struct {
	Content  string
	Metadata map[string]string
	Score    float64
}

// MetadataString renders metadata as map[k1:v1 k2:v2] with sorted keys.
func (d Document) MetadataString() string {
	keys := slices.Sorted(maps.Keys(d.Metadata))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ":" + d.Metadata[k]
	}
	return "map[" + strings.Join(parts, " ") + "]"
}

// IndexParams identifies an index and the credentials to open it.
type IndexParams struct {
	APIKey         string
	IndexName      string
	EmbeddingModel string
}

// Validate returns a *ConfigError naming every empty parameter.
func (p IndexParams) Validate() error {
	var missing []string
	if strings.TrimSpace(p.IndexName) == "" {
		missing = append(missing, "index name")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		missing = append(missing, "index API key")
	}
	if strings.TrimSpace(p.EmbeddingModel) == "" {
		missing = append(missing, "embedding model")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

func (p IndexParams) String() string {
	return fmt.Sprintf("index=%s embedding_model=%s", p.IndexName, p.EmbeddingModel)
}

// IndexBackend opens connections to named document indexes.
type IndexBackend interface {
	// Connect fails with ErrConfiguration when params are incomplete and
	// with ErrConnection when the index cannot be reached or opened.
	Connect(ctx context.Context, params IndexParams) (Index, error)
}

// Index is an open connection to one document index.
type Index interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error)
	Close() error
}
