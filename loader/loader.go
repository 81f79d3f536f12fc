package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"gopkg.in/yaml.v3"

	"github.com/smallnest/alloydbpg/engine"
)

// Formatter renders the content columns of a row into a document's page
// content.
type Formatter func(row map[string]any, contentColumns []string) string

// Loader reads rows from a table or arbitrary query and turns them into
// documents. It implements documentloaders.Loader.
type Loader struct {
	pool engine.DBPool

	tableName  string
	schemaName string
	query      string

	contentColumns     []string
	metadataColumns    []string
	metadataJSONColumn string

	formatter Formatter
}

var _ documentloaders.Loader = (*Loader)(nil)

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithTableName loads every row of the table. Mutually exclusive with
// WithQuery.
func WithTableName(name string) LoaderOption {
	return func(l *Loader) { l.tableName = name }
}

// WithSchemaName sets the table schema, default "public".
func WithSchemaName(name string) LoaderOption {
	return func(l *Loader) { l.schemaName = name }
}

// WithQuery loads the rows produced by an arbitrary SQL query.
func WithQuery(query string) LoaderOption {
	return func(l *Loader) { l.query = query }
}

// WithContentColumns names the columns rendered into page content. Defaults
// to the first column of the result set.
func WithContentColumns(names []string) LoaderOption {
	return func(l *Loader) { l.contentColumns = names }
}

// WithMetadataColumns names the columns kept as metadata. Defaults to every
// column not used for content.
func WithMetadataColumns(names []string) LoaderOption {
	return func(l *Loader) { l.metadataColumns = names }
}

// WithMetadataJSONColumn names a JSON column whose keys are merged into the
// metadata, default "langchain_metadata" when present.
func WithMetadataJSONColumn(name string) LoaderOption {
	return func(l *Loader) { l.metadataJSONColumn = name }
}

// WithFormat selects a built-in content formatter: "text", "csv", "yaml" or
// "json". Mutually exclusive with WithFormatter.
func WithFormat(format string) LoaderOption {
	return func(l *Loader) {
		switch strings.ToLower(format) {
		case "", "text":
			l.formatter = textFormatter
		case "csv":
			l.formatter = csvFormatter
		case "yaml":
			l.formatter = yamlFormatter
		case "json":
			l.formatter = jsonFormatter
		default:
			l.formatter = nil
		}
	}
}

// WithFormatter sets a custom content formatter.
func WithFormatter(formatter Formatter) LoaderOption {
	return func(l *Loader) { l.formatter = formatter }
}

// NewLoader creates a Loader. Either WithTableName or WithQuery must be
// given.
func NewLoader(eng *engine.Engine, opts ...LoaderOption) (*Loader, error) {
	l := &Loader{
		pool:               eng.Pool(),
		schemaName:         engine.DefaultSchemaName,
		metadataJSONColumn: "langchain_metadata",
		formatter:          textFormatter,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.tableName == "" && l.query == "" {
		return nil, fmt.Errorf("loader: a table name or query is required")
	}
	if l.tableName != "" && l.query != "" {
		return nil, fmt.Errorf("loader: table name and query are mutually exclusive")
	}
	if l.formatter == nil {
		return nil, fmt.Errorf("loader: unknown format, expected text, csv, yaml or json")
	}
	return l, nil
}

// Load reads every row into a document.
func (l *Loader) Load(ctx context.Context) ([]schema.Document, error) {
	var docs []schema.Document
	err := l.LazyLoad(ctx, func(doc schema.Document) error {
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// LoadAndSplit reads every row and splits the documents with the given
// splitter.
func (l *Loader) LoadAndSplit(ctx context.Context, splitter textsplitter.TextSplitter) ([]schema.Document, error) {
	docs, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	return textsplitter.SplitDocuments(splitter, docs)
}

// LazyLoad streams documents row by row to fn. Returning an error from fn
// stops the iteration.
func (l *Loader) LazyLoad(ctx context.Context, fn func(schema.Document) error) error {
	query := l.query
	if query == "" {
		query = fmt.Sprintf("SELECT * FROM %q.%q", l.schemaName, l.tableName)
	}

	rows, err := l.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, field := range fields {
		columns[i] = string(field.Name)
	}
	contentColumns, metadataColumns := l.resolveColumns(columns)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return fmt.Errorf("failed to read document row: %w", err)
		}
		row := make(map[string]any, len(values))
		for i, name := range columns {
			if i < len(values) {
				row[name] = values[i]
			}
		}
		if err := fn(l.toDocument(row, contentColumns, metadataColumns)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating document rows: %w", err)
	}
	return nil
}

// resolveColumns applies the defaults: first column is content, the rest is
// metadata.
func (l *Loader) resolveColumns(columns []string) (content, metadata []string) {
	content = l.contentColumns
	if len(content) == 0 && len(columns) > 0 {
		content = columns[:1]
	}

	metadata = l.metadataColumns
	if metadata == nil {
		isContent := make(map[string]bool, len(content))
		for _, name := range content {
			isContent[name] = true
		}
		for _, name := range columns {
			if !isContent[name] && name != l.metadataJSONColumn {
				metadata = append(metadata, name)
			}
		}
	}
	return content, metadata
}

func (l *Loader) toDocument(row map[string]any, contentColumns, metadataColumns []string) schema.Document {
	doc := schema.Document{
		PageContent: l.formatter(row, contentColumns),
		Metadata:    map[string]any{},
	}
	for _, name := range metadataColumns {
		if value, ok := row[name]; ok && value != nil {
			doc.Metadata[name] = value
		}
	}
	if raw, ok := row[l.metadataJSONColumn]; ok {
		mergeJSON(doc.Metadata, raw)
	}
	return doc
}

func mergeJSON(metadata map[string]any, value any) {
	var extra map[string]any
	switch v := value.(type) {
	case map[string]any:
		extra = v
	case []byte:
		_ = json.Unmarshal(v, &extra)
	case string:
		_ = json.Unmarshal([]byte(v), &extra)
	}
	for key, val := range extra {
		metadata[key] = val
	}
}

func textFormatter(row map[string]any, contentColumns []string) string {
	return joinColumns(row, contentColumns, " ")
}

func csvFormatter(row map[string]any, contentColumns []string) string {
	return joinColumns(row, contentColumns, ", ")
}

func joinColumns(row map[string]any, contentColumns []string, sep string) string {
	parts := make([]string, 0, len(contentColumns))
	for _, name := range contentColumns {
		if value, ok := row[name]; ok && value != nil {
			parts = append(parts, fmt.Sprintf("%v", value))
		}
	}
	return strings.Join(parts, sep)
}

func yamlFormatter(row map[string]any, contentColumns []string) string {
	var b strings.Builder
	for _, name := range contentColumns {
		value, ok := row[name]
		if !ok || value == nil {
			continue
		}
		encoded, err := yaml.Marshal(map[string]any{name: value})
		if err != nil {
			continue
		}
		b.Write(encoded)
	}
	return strings.TrimRight(b.String(), "\n")
}

func jsonFormatter(row map[string]any, contentColumns []string) string {
	content := make(map[string]any, len(contentColumns))
	for _, name := range contentColumns {
		if value, ok := row[name]; ok && value != nil {
			content[name] = value
		}
	}
	encoded, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	return string(encoded)
}
