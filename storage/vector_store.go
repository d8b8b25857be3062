package storage

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"mentor/config"
	"mentor/model"
)

const embedBatchSize = 32

var indexNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ErrIndexExists is returned by Create when the named index is already on disk.
var ErrIndexExists = errors.New("index already exists")

// ModelValidator is implemented by embedders that can check a model name
// before it is used.
type ModelValidator interface {
	ValidateModel(ctx context.Context, name string) error
}

// VectorStore keeps one sqlite database per named index under dir.
type VectorStore struct {
	dir      string
	embedder model.Embedder
}

func NewVectorStore(dir string, embedder model.Embedder) *VectorStore {
	return &VectorStore{dir: dir, embedder: embedder}
}

func (s *VectorStore) path(name string) string {
	return filepath.Join(s.dir, name+".db")
}

// Exists reports whether an index with that name has been created.
func (s *VectorStore) Exists(name string) bool {
	return indexNamePattern.MatchString(name) && config.FileExists(s.path(name))
}

// List returns the names of all indexes on disk.
func (s *VectorStore) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.db"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m[:len(m)-len(".db")]))
	}
	slices.Sort(names)
	return names, nil
}

func validateParams(params model.IndexParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if !indexNamePattern.MatchString(params.IndexName) {
		return &model.ConfigError{Reason: fmt.Sprintf("invalid index name %q", params.IndexName)}
	}
	return nil
}

func hashKey(apiKey string) string {
	sum := blake3.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// Connect opens an existing index after checking the API key and the
// embedding model it was built with.
func (s *VectorStore) Connect(ctx context.Context, params model.IndexParams) (model.Index, error) {
	return s.Open(ctx, params)
}

// Open is Connect with the concrete return type, for callers that add documents.
func (s *VectorStore) Open(ctx context.Context, params model.IndexParams) (*Index, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding backend configured", model.ErrConnection)
	}

	path := s.path(params.IndexName)
	if !config.FileExists(path) {
		return nil, fmt.Errorf("%w: index %q does not exist", model.ErrConnection, params.IndexName)
	}

	db, err := openDB(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConnection, err)
	}

	ix := &Index{db: db, name: params.IndexName, embedder: s.embedder}
	meta, err := ix.metadata(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to read index metadata: %v", model.ErrConnection, err)
	}

	if subtle.ConstantTimeCompare([]byte(meta["key_hash"]), []byte(hashKey(params.APIKey))) != 1 {
		db.Close()
		return nil, fmt.Errorf("%w: invalid API key for index %q", model.ErrConnection, params.IndexName)
	}
	if meta["embedding_model"] != params.EmbeddingModel {
		db.Close()
		return nil, fmt.Errorf("%w: index %q was built with embedding model %q, not %q",
			model.ErrConnection, params.IndexName, meta["embedding_model"], params.EmbeddingModel)
	}
	if v, ok := s.embedder.(ModelValidator); ok {
		if err := v.ValidateModel(ctx, params.EmbeddingModel); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: embedding model unavailable: %v", model.ErrConnection, err)
		}
	}
	ix.model = params.EmbeddingModel
	if d, err := strconv.Atoi(meta["dimensions"]); err == nil {
		ix.dimensions = d
	}

	config.Debugf("[Index] opened %s", params)
	return ix, nil
}

// Create makes a new empty index protected by apiKey.
func (s *VectorStore) Create(ctx context.Context, params model.IndexParams) (*Index, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if err := config.EnsureDir(s.dir); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	path := s.path(params.IndexName)
	if config.FileExists(path) {
		return nil, fmt.Errorf("%w: %s", ErrIndexExists, params.IndexName)
	}

	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0600); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set index permissions: %w", err)
	}

	ix := &Index{db: db, name: params.IndexName, model: params.EmbeddingModel, embedder: s.embedder}
	if err := ix.initialize(ctx); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to initialize index: %w", err)
	}

	meta := map[string]string{
		"key_hash":        hashKey(params.APIKey),
		"embedding_model": params.EmbeddingModel,
		"created_at":      time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if err := ix.setMetadata(ctx, k, v); err != nil {
			db.Close()
			os.Remove(path)
			return nil, err
		}
	}

	config.Debugf("[Index] created %s", params)
	return ix, nil
}

// OpenOrCreate opens the index, creating it first when it does not exist.
func (s *VectorStore) OpenOrCreate(ctx context.Context, params model.IndexParams) (*Index, error) {
	if s.Exists(params.IndexName) {
		return s.Open(ctx, params)
	}
	return s.Create(ctx, params)
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Index is an open sqlite-backed vector index.
type Index struct {
	db         *sql.DB
	name       string
	model      string
	dimensions int
	embedder   model.Embedder
}

func (ix *Index) Name() string { return ix.name }

func (ix *Index) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL,
		embedding BLOB NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	);
	`
	_, err := ix.db.ExecContext(ctx, schema)
	return err
}

func (ix *Index) metadata(ctx context.Context) (map[string]string, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT key, value FROM metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (ix *Index) setMetadata(ctx context.Context, key, value string) error {
	_, err := ix.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write index metadata %s: %w", key, err)
	}
	return nil
}

func contentHash(doc model.Document) string {
	h := blake3.New()
	h.Write([]byte(doc.Metadata["source"]))
	h.Write([]byte{0})
	h.Write([]byte(doc.Content))
	return hex.EncodeToString(h.Sum(nil))
}

// AddDocuments embeds and stores docs. Chunks already present (same source
// and content) are skipped. It returns how many chunks were inserted.
func (ix *Index) AddDocuments(ctx context.Context, docs []model.Document) (int, error) {
	added := 0
	for start := 0; start < len(docs); start += embedBatchSize {
		end := min(start+embedBatchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		vectors, err := ix.embedder.Embed(ctx, ix.model, texts)
		if err != nil {
			return added, fmt.Errorf("%w: %v", model.ErrConnection, err)
		}
		if len(vectors) != len(batch) {
			return added, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		n, err := ix.insertBatch(ctx, batch, vectors)
		added += n
		if err != nil {
			return added, err
		}
	}
	config.Debugf("[Index] %s: added %d of %d chunks", ix.name, added, len(docs))
	return added, nil
}

func (ix *Index) insertBatch(ctx context.Context, batch []model.Document, vectors [][]float32) (int, error) {
	if ix.dimensions == 0 && len(vectors) > 0 {
		ix.dimensions = len(vectors[0])
		if err := ix.setMetadata(ctx, "dimensions", strconv.Itoa(ix.dimensions)); err != nil {
			return 0, err
		}
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO chunks (content, metadata, embedding, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	now := time.Now()
	for i, doc := range batch {
		if len(vectors[i]) != ix.dimensions {
			return 0, fmt.Errorf("embedding has %d dimensions, index %q uses %d", len(vectors[i]), ix.name, ix.dimensions)
		}
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return 0, fmt.Errorf("failed to encode chunk metadata: %w", err)
		}
		res, err := stmt.ExecContext(ctx, doc.Content, string(meta), encodeVector(vectors[i]), contentHash(doc), now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chunk: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit chunks: %w", err)
	}
	return added, nil
}

// Count returns the number of stored chunks.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// SimilaritySearch returns the k chunks closest to query by cosine
// similarity, best first. Equal scores keep insertion order.
func (ix *Index) SimilaritySearch(ctx context.Context, query string, k int) ([]model.Document, error) {
	if k <= 0 {
		return nil, nil
	}
	vectors, err := ix.embedder.Embed(ctx, ix.model, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConnection, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	q := vectors[0]

	rows, err := ix.db.QueryContext(ctx, `SELECT content, metadata, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []model.Document
	for rows.Next() {
		var (
			content, metaJSON string
			blob              []byte
		)
		if err := rows.Scan(&content, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
		}
		hits = append(hits, model.Document{
			Content:  content,
			Metadata: meta,
			Score:    cosine(q, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(hits, func(a, b model.Document) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
