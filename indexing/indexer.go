// Package indexing turns course material (files, archives and web pages)
// into chunks stored in a vector index.
package indexing

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mentor/config"
	"mentor/model"
	"mentor/storage"
)

// maxUploadSize caps a single file or web page.
const maxUploadSize = 256 << 20

// Report summarizes one indexing run.
type Report struct {
	Index   string
	Sources []string
	Chunks  int
	Added   int
	Skipped []string
}

func (r Report) String() string {
	return fmt.Sprintf("%d chunk(s) from %d source(s) indexed into %s (%d new, %d skipped)",
		r.Chunks, len(r.Sources), r.Index, r.Added, len(r.Skipped))
}

type Indexer struct {
	store      *storage.VectorStore
	splitter   *Splitter
	HTTPClient *http.Client
	UserAgent  string
}

func NewIndexer(store *storage.VectorStore, splitter *Splitter) *Indexer {
	if splitter == nil {
		splitter = NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	}
	return &Indexer{
		store:      store,
		splitter:   splitter,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		UserAgent:  "mentor-indexer/1.0",
	}
}

// IndexFile indexes the file at path, creating the index on first use.
func (ix *Indexer) IndexFile(ctx context.Context, params model.IndexParams, path string) (Report, error) {
	data, err := os.ReadFile(config.ExpandPath(path))
	if err != nil {
		return Report{Index: params.IndexName}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ix.IndexBytes(ctx, params, filepath.Base(path), data)
}

// IndexReader indexes the document read from r under name.
func (ix *Indexer) IndexReader(ctx context.Context, params model.IndexParams, name string, r io.Reader) (Report, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxUploadSize+1))
	if err != nil {
		return Report{Index: params.IndexName}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) > maxUploadSize {
		return Report{Index: params.IndexName}, fmt.Errorf("%s is larger than %d bytes", name, maxUploadSize)
	}
	return ix.IndexBytes(ctx, params, name, data)
}

// IndexBytes extracts, splits and stores the document called name.
func (ix *Indexer) IndexBytes(ctx context.Context, params model.IndexParams, name string, data []byte) (Report, error) {
	sources, skipped, err := Extract(name, data)
	if err != nil {
		return Report{Index: params.IndexName, Skipped: skipped}, err
	}
	report, err := ix.indexSources(ctx, params, sources)
	report.Skipped = append(report.Skipped, skipped...)
	return report, err
}

// IndexURL fetches a web page and indexes its visible text.
func (ix *Indexer) IndexURL(ctx context.Context, params model.IndexParams, rawURL string) (Report, error) {
	src, err := ix.fetch(ctx, rawURL)
	if err != nil {
		return Report{Index: params.IndexName}, err
	}
	return ix.indexSources(ctx, params, []Source{src})
}

func (ix *Indexer) fetch(ctx context.Context, rawURL string) (Source, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Source{}, &model.ConfigError{Reason: fmt.Sprintf("invalid web URL: %q", rawURL)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Source{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", ix.UserAgent)

	resp, err := ix.HTTPClient.Do(req)
	if err != nil {
		return Source{}, fmt.Errorf("%w: failed to fetch %s: %v", model.ErrConnection, u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Source{}, fmt.Errorf("%w: fetching %s returned %s", model.ErrConnection, u, resp.Status)
	}

	body := io.LimitReader(resp.Body, maxUploadSize)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	var content string
	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		content, err = htmlText(body)
	case strings.HasPrefix(mediaType, "text/"):
		var raw []byte
		raw, err = io.ReadAll(body)
		content = string(raw)
	default:
		return Source{}, fmt.Errorf("%w: %s serves %s", ErrUnsupportedFormat, u, mediaType)
	}
	if err != nil {
		return Source{}, err
	}
	content = normalize(content)
	if content == "" {
		return Source{}, fmt.Errorf("%s: %w", u, ErrEmptyDocument)
	}
	config.Debugf("[Index] fetched %s (%d chars)", u, len(content))
	return Source{Name: u.String(), Text: content}, nil
}

func (ix *Indexer) indexSources(ctx context.Context, params model.IndexParams, sources []Source) (Report, error) {
	report := Report{Index: params.IndexName}

	var docs []model.Document
	for _, src := range sources {
		chunks := ix.splitter.Split(src.Text)
		config.Debugf("[Index] %s: %d chunk(s)", src.Name, len(chunks))
		for i, c := range chunks {
			docs = append(docs, model.Document{
				Content:  c,
				Metadata: map[string]string{"source": src.Name, "chunk": strconv.Itoa(i)},
			})
		}
		report.Sources = append(report.Sources, src.Name)
	}
	report.Chunks = len(docs)
	if len(docs) == 0 {
		return report, ErrEmptyDocument
	}

	index, err := ix.store.OpenOrCreate(ctx, params)
	if err != nil {
		return report, err
	}
	defer index.Close()

	added, err := index.AddDocuments(ctx, docs)
	report.Added = added
	if err != nil {
		return report, fmt.Errorf("failed to store chunks: %w", err)
	}
	config.Debugf("[Index] %s", report)
	return report, nil
}
