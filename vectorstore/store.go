package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/smallnest/alloydbpg/engine"
	"github.com/smallnest/alloydbpg/log"
)

// Store is a vector store backed by an AlloyDB table with a pgvector
// embedding column. It implements vectorstores.VectorStore.
type Store struct {
	pool     engine.DBPool
	embedder embeddings.Embedder

	tableName  string
	schemaName string

	idColumn              string
	contentColumn         string
	embeddingColumn       string
	metadataColumns       []string
	ignoreMetadataColumns []string
	metadataJSONColumn    string

	distanceStrategy  DistanceStrategy
	k                 int
	fetchK            int
	lambdaMult        float64
	indexQueryOptions []QueryOptions
}

var _ vectorstores.VectorStore = (*Store)(nil)

// New creates a Store over an existing table. The table is introspected and
// the configured columns validated; initialize the table first with
// Engine.InitVectorstoreTable.
func New(ctx context.Context, eng *engine.Engine, embedder embeddings.Embedder, tableName string, opts ...Option) (*Store, error) {
	if tableName == "" {
		return nil, fmt.Errorf("vectorstore: table name is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("vectorstore: embedder is required")
	}

	s := &Store{
		pool:               eng.Pool(),
		embedder:           embedder,
		tableName:          tableName,
		schemaName:         engine.DefaultSchemaName,
		idColumn:           "langchain_id",
		contentColumn:      "content",
		embeddingColumn:    "embedding",
		metadataJSONColumn: "langchain_metadata",
		distanceStrategy:   CosineDistance,
		k:                  4,
		fetchK:             20,
		lambdaMult:         0.5,
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(s.metadataColumns) > 0 && len(s.ignoreMetadataColumns) > 0 {
		return nil, fmt.Errorf("vectorstore: metadata columns and ignore metadata columns are mutually exclusive")
	}

	columns, err := eng.LoadTableSchema(ctx, s.tableName, s.schemaName)
	if err != nil {
		return nil, err
	}

	if _, ok := columns[s.idColumn]; !ok {
		return nil, fmt.Errorf("vectorstore: id column %q not found in table %q", s.idColumn, s.tableName)
	}
	contentType, ok := columns[s.contentColumn]
	if !ok {
		return nil, fmt.Errorf("vectorstore: content column %q not found in table %q", s.contentColumn, s.tableName)
	}
	if contentType != "text" && !strings.Contains(contentType, "char") {
		return nil, fmt.Errorf("vectorstore: content column %q must be a text type, got %q", s.contentColumn, contentType)
	}
	embeddingType, ok := columns[s.embeddingColumn]
	if !ok {
		return nil, fmt.Errorf("vectorstore: embedding column %q not found in table %q", s.embeddingColumn, s.tableName)
	}
	if embeddingType != "USER-DEFINED" {
		return nil, fmt.Errorf("vectorstore: embedding column %q must be of vector type, got %q", s.embeddingColumn, embeddingType)
	}
	for _, name := range s.metadataColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("vectorstore: metadata column %q not found in table %q", name, s.tableName)
		}
	}

	if len(s.ignoreMetadataColumns) > 0 {
		reserved := map[string]bool{s.idColumn: true, s.contentColumn: true, s.embeddingColumn: true}
		for _, name := range s.ignoreMetadataColumns {
			reserved[name] = true
		}
		var metadataColumns []string
		for name := range columns {
			if !reserved[name] && name != s.metadataJSONColumn {
				metadataColumns = append(metadataColumns, name)
			}
		}
		slices.Sort(metadataColumns)
		s.metadataColumns = metadataColumns
	}

	if s.metadataJSONColumn != "" {
		if _, ok := columns[s.metadataJSONColumn]; !ok {
			log.Debug("metadata JSON column %q not found in table %q, ignoring", s.metadataJSONColumn, s.tableName)
			s.metadataJSONColumn = ""
		}
	}

	return s, nil
}

// NewWithPool creates a Store directly on a pool without introspecting the
// table. Column configuration is taken as given.
func NewWithPool(pool engine.DBPool, embedder embeddings.Embedder, tableName string, opts ...Option) *Store {
	s := &Store{
		pool:               pool,
		embedder:           embedder,
		tableName:          tableName,
		schemaName:         engine.DefaultSchemaName,
		idColumn:           "langchain_id",
		contentColumn:      "content",
		embeddingColumn:    "embedding",
		metadataJSONColumn: "langchain_metadata",
		distanceStrategy:   CosineDistance,
		k:                  4,
		fetchK:             20,
		lambdaMult:         0.5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddDocuments embeds the documents and inserts them, returning the assigned
// ids.
func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := applyOptions(options)

	if opts.Deduplicater != nil {
		kept := make([]schema.Document, 0, len(docs))
		for _, doc := range docs {
			if !opts.Deduplicater(ctx, doc) {
				kept = append(kept, doc)
			}
		}
		docs = kept
	}
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	metadatas := make([]map[string]any, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
		metadatas[i] = doc.Metadata
	}
	return s.addTexts(ctx, texts, metadatas, nil, s.pickEmbedder(opts))
}

// AddTexts embeds the texts and inserts them with the given metadata. A nil
// metadatas slice inserts empty metadata.
func (s *Store) AddTexts(ctx context.Context, texts []string, metadatas []map[string]any, ids []string) ([]string, error) {
	return s.addTexts(ctx, texts, metadatas, ids, s.embedder)
}

func (s *Store) addTexts(ctx context.Context, texts []string, metadatas []map[string]any, ids []string, embedder embeddings.Embedder) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}
	return s.AddEmbeddings(ctx, texts, vectors, metadatas, ids)
}

// AddEmbeddings inserts precomputed embeddings. Rows are upserted on the id
// column; missing ids are generated.
func (s *Store) AddEmbeddings(ctx context.Context, texts []string, vectors [][]float32, metadatas []map[string]any, ids []string) ([]string, error) {
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("vectorstore: got %d embeddings for %d texts", len(vectors), len(texts))
	}
	if metadatas != nil && len(metadatas) != len(texts) {
		return nil, fmt.Errorf("vectorstore: got %d metadatas for %d texts", len(metadatas), len(texts))
	}
	if ids == nil {
		ids = make([]string, len(texts))
		for i := range ids {
			ids[i] = uuid.NewString()
		}
	} else if len(ids) != len(texts) {
		return nil, fmt.Errorf("vectorstore: got %d ids for %d texts", len(ids), len(texts))
	}

	stmt := s.insertStmt()
	for i, text := range texts {
		var metadata map[string]any
		if metadatas != nil {
			metadata = metadatas[i]
		}
		args, err := s.insertArgs(ids[i], text, vectors[i], metadata)
		if err != nil {
			return nil, err
		}
		if _, err := s.pool.Exec(ctx, stmt, args...); err != nil {
			return nil, fmt.Errorf("failed to insert document: %w", err)
		}
	}
	return ids, nil
}

func (s *Store) insertStmt() string {
	columns := []string{s.idColumn, s.contentColumn, s.embeddingColumn}
	columns = append(columns, s.metadataColumns...)
	if s.metadataJSONColumn != "" {
		columns = append(columns, s.metadataJSONColumn)
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns)-1)
	for i, name := range columns {
		quoted[i] = fmt.Sprintf("%q", name)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if i > 0 {
			updates = append(updates, fmt.Sprintf("%q = EXCLUDED.%q", name, name))
		}
	}

	return fmt.Sprintf("INSERT INTO %q.%q (%s) VALUES (%s) ON CONFLICT (%q) DO UPDATE SET %s",
		s.schemaName, s.tableName,
		strings.Join(quoted, ", "), strings.Join(placeholders, ", "),
		s.idColumn, strings.Join(updates, ", "))
}

func (s *Store) insertArgs(id, text string, vector []float32, metadata map[string]any) ([]any, error) {
	args := []any{id, text, pgvector.NewVector(vector)}

	extra := make(map[string]any, len(metadata))
	for k, v := range metadata {
		extra[k] = v
	}
	for _, name := range s.metadataColumns {
		value, ok := extra[name]
		if ok {
			delete(extra, name)
		} else {
			value = nil
		}
		args = append(args, value)
	}
	if s.metadataJSONColumn != "" {
		encoded, err := json.Marshal(extra)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		args = append(args, string(encoded))
	}
	return args, nil
}

// Delete removes the rows with the given ids. It reports whether the
// statement ran; an empty id list is a no-op.
func (s *Store) Delete(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	stmt := fmt.Sprintf("DELETE FROM %q.%q WHERE %q = ANY($1)", s.schemaName, s.tableName, s.idColumn)
	if _, err := s.pool.Exec(ctx, stmt, ids); err != nil {
		return false, fmt.Errorf("failed to delete documents: %w", err)
	}
	return true, nil
}

func (s *Store) pickEmbedder(opts vectorstores.Options) embeddings.Embedder {
	if opts.Embedder != nil {
		return opts.Embedder
	}
	return s.embedder
}

func applyOptions(options []vectorstores.Option) vectorstores.Options {
	opts := vectorstores.Options{}
	for _, option := range options {
		option(&opts)
	}
	return opts
}
