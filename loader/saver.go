package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/schema"

	"github.com/smallnest/alloydbpg/engine"
)

// DocumentSaver writes documents into a table created with
// Engine.InitDocumentTable.
type DocumentSaver struct {
	pool engine.DBPool

	tableName  string
	schemaName string

	contentColumn      string
	metadataColumns    []string
	metadataJSONColumn string
}

// SaverOption configures a DocumentSaver.
type SaverOption func(*DocumentSaver)

// WithSaverSchemaName sets the table schema, default "public".
func WithSaverSchemaName(name string) SaverOption {
	return func(s *DocumentSaver) { s.schemaName = name }
}

// WithSaverContentColumn sets the page content column, default
// "page_content".
func WithSaverContentColumn(name string) SaverOption {
	return func(s *DocumentSaver) { s.contentColumn = name }
}

// WithSaverMetadataColumns names typed columns filled from document
// metadata.
func WithSaverMetadataColumns(names []string) SaverOption {
	return func(s *DocumentSaver) { s.metadataColumns = names }
}

// WithSaverMetadataJSONColumn sets the JSON column for leftover metadata,
// default "langchain_metadata". An empty name disables it.
func WithSaverMetadataJSONColumn(name string) SaverOption {
	return func(s *DocumentSaver) { s.metadataJSONColumn = name }
}

// NewDocumentSaver creates a DocumentSaver for the given table. The table's
// columns are validated against the configuration.
func NewDocumentSaver(ctx context.Context, eng *engine.Engine, tableName string, opts ...SaverOption) (*DocumentSaver, error) {
	if tableName == "" {
		return nil, fmt.Errorf("document saver: table name is required")
	}
	s := &DocumentSaver{
		pool:               eng.Pool(),
		tableName:          tableName,
		schemaName:         engine.DefaultSchemaName,
		contentColumn:      "page_content",
		metadataJSONColumn: "langchain_metadata",
	}
	for _, opt := range opts {
		opt(s)
	}

	columns, err := eng.LoadTableSchema(ctx, s.tableName, s.schemaName)
	if err != nil {
		return nil, err
	}
	if _, ok := columns[s.contentColumn]; !ok {
		return nil, fmt.Errorf("document saver: content column %q not found in table %q", s.contentColumn, s.tableName)
	}
	for _, name := range s.metadataColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("document saver: metadata column %q not found in table %q", name, s.tableName)
		}
	}
	if s.metadataJSONColumn != "" {
		if _, ok := columns[s.metadataJSONColumn]; !ok {
			s.metadataJSONColumn = ""
		}
	}
	return s, nil
}

// AddDocuments inserts the documents, mapping metadata keys to typed columns
// when they exist and the remainder to the JSON column.
func (s *DocumentSaver) AddDocuments(ctx context.Context, docs []schema.Document) error {
	stmt := s.insertStmt()
	for _, doc := range docs {
		args := []any{doc.PageContent}

		extra := make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
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
				return fmt.Errorf("failed to encode metadata: %w", err)
			}
			args = append(args, string(encoded))
		}

		if _, err := s.pool.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
	}
	return nil
}

// Delete removes the rows matching each document's content and, when the
// JSON column is configured, its metadata.
func (s *DocumentSaver) Delete(ctx context.Context, docs []schema.Document) error {
	for _, doc := range docs {
		stmt := fmt.Sprintf("DELETE FROM %q.%q WHERE %q = $1", s.schemaName, s.tableName, s.contentColumn)
		args := []any{doc.PageContent}
		if s.metadataJSONColumn != "" {
			encoded, err := json.Marshal(doc.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata: %w", err)
			}
			stmt += fmt.Sprintf(" AND %q::jsonb = $2::jsonb", s.metadataJSONColumn)
			args = append(args, string(encoded))
		}
		if _, err := s.pool.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
	}
	return nil
}

func (s *DocumentSaver) insertStmt() string {
	columns := []string{s.contentColumn}
	columns = append(columns, s.metadataColumns...)
	if s.metadataJSONColumn != "" {
		columns = append(columns, s.metadataJSONColumn)
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, name := range columns {
		quoted[i] = fmt.Sprintf("%q", name)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %q.%q (%s) VALUES (%s)",
		s.schemaName, s.tableName,
		strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}
