// Package retrieval implements the "retrieve" tool: a top-K similarity
// lookup against a course-material index whose result is always a single
// text block, even when the lookup fails.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"mentor/config"
	"mentor/model"
)

const (
	ToolName = "retrieve"

	// TopK is the number of hits returned per lookup.
	TopK = 3

	// ErrorMarker prefixes the content of a failed lookup.
	ErrorMarker = "Tool Error"
)

// Argument names of the retrieve tool.
const (
	ArgQuery          = "query"
	ArgIndexAPIKey    = "index_api_key"
	ArgIndexName      = "index_name"
	ArgEmbeddingModel = "embedding_model"
)

// Declaration describes the retrieve tool and its arguments.
func Declaration() mcptypes.Tool {
	return mcptypes.NewTool(ToolName,
		mcptypes.WithDescription("Retrieve relevant information about course syllabus and university material from the document index using the provided query."),
		mcptypes.WithString(ArgQuery,
			mcptypes.Required(),
			mcptypes.Description("Search query describing the material the student asked about"),
		),
		mcptypes.WithString(ArgIndexAPIKey,
			mcptypes.Required(),
			mcptypes.Description("API key of the document index"),
		),
		mcptypes.WithString(ArgIndexName,
			mcptypes.Required(),
			mcptypes.Description("Name of the document index"),
		),
		mcptypes.WithString(ArgEmbeddingModel,
			mcptypes.Required(),
			mcptypes.Description("Embedding model the index was built with"),
		),
	)
}

// Result is the outcome of one lookup. Content is what goes into the Tool
// message; Artifact holds the raw hits and is empty on failure.
type Result struct {
	Content  string
	Artifact []model.Document
}

// Failed reports whether the lookup failed.
func (r Result) Failed() bool {
	return IsError(r.Content)
}

type Tool struct {
	backend model.IndexBackend
	decl    mcptypes.Tool
}

func NewTool(backend model.IndexBackend) *Tool {
	return &Tool{backend: backend, decl: Declaration()}
}

// Run executes call. Failures never escape as errors: they are encoded in
// the returned content behind ErrorMarker.
func (t *Tool) Run(ctx context.Context, call model.ToolCall, creds model.Credentials) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			config.Debugf("[Retrieve] ERROR: panic in index backend: %v", r)
			res = errorResult(fmt.Errorf("%w: index backend panicked: %v", model.ErrInternal, r))
		}
	}()

	if call.Name != ToolName {
		return errorResult(fmt.Errorf("%w: unknown tool %q", model.ErrConfiguration, call.Name))
	}

	query, params, err := t.Params(call.Args, creds)
	if err != nil {
		config.Debugf("[Retrieve] ERROR: %v", err)
		return errorResult(err)
	}
	config.Debugf("[Retrieve] query=%q %s", query, params)

	if t.backend == nil {
		return errorResult(fmt.Errorf("%w: no index backend configured", model.ErrConnection))
	}
	index, err := t.backend.Connect(ctx, params)
	if err != nil {
		config.Debugf("[Retrieve] ERROR: connect: %v", err)
		return errorResult(err)
	}
	defer index.Close()

	docs, err := index.SimilaritySearch(ctx, query, TopK)
	if err != nil {
		config.Debugf("[Retrieve] ERROR: search: %v", err)
		return errorResult(err)
	}
	config.Debugf("[Retrieve] documents found: %d", len(docs))

	return Result{Content: Serialize(docs), Artifact: docs}
}

// Params merges call arguments with the session credentials and checks
// the result against the tool declaration. Session values win over
// anything the model put in the arguments.
func (t *Tool) Params(args map[string]any, creds model.Credentials) (string, model.IndexParams, error) {
	merged := map[string]string{}
	for _, name := range []string{ArgQuery, ArgIndexAPIKey, ArgIndexName, ArgEmbeddingModel} {
		if v, ok := args[name].(string); ok {
			merged[name] = strings.TrimSpace(v)
		}
	}
	for name, v := range map[string]string{
		ArgIndexAPIKey:    creds.IndexKey,
		ArgIndexName:      creds.IndexName,
		ArgEmbeddingModel: creds.EmbeddingModel,
	} {
		if v != "" {
			merged[name] = v
		}
	}

	var missing []string
	for _, name := range t.decl.InputSchema.Required {
		if merged[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", model.IndexParams{}, &model.ConfigError{Missing: missing}
	}

	return merged[ArgQuery], model.IndexParams{
		APIKey:         merged[ArgIndexAPIKey],
		IndexName:      merged[ArgIndexName],
		EmbeddingModel: merged[ArgEmbeddingModel],
	}, nil
}

// Serialize renders hits as "Source: <metadata>\nContent: <text>" blocks
// separated by a blank line.
func Serialize(docs []model.Document) string {
	blocks := make([]string, len(docs))
	for i, d := range docs {
		blocks[i] = "Source: " + d.MetadataString() + "\nContent: " + d.Content
	}
	return strings.Join(blocks, "\n\n")
}

func errorResult(err error) Result {
	return Result{Content: ErrorMarker + " " + err.Error()}
}

// IsError reports whether tool content starts with ErrorMarker. Hits always
// start with "Source:", so the phrase inside a hit does not count.
func IsError(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), ErrorMarker)
}

// StripMarker removes the leading ErrorMarker, leaving the bare error message.
func StripMarker(content string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(content), ErrorMarker))
}
