package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/alloydbpg/log"
)

const (
	// DefaultSchemaName is used when a table option leaves the schema empty.
	DefaultSchemaName = "public"

	// DefaultCheckpointTable is the default table for graph checkpoints.
	DefaultCheckpointTable = "checkpoints"
)

// Column describes a typed metadata column for a generated table.
type Column struct {
	Name     string
	DataType string
	Nullable bool
}

// VectorstoreTableOptions configures InitVectorstoreTable.
type VectorstoreTableOptions struct {
	TableName  string
	SchemaName string // defaults to "public"

	// VectorSize is the embedding dimension, required.
	VectorSize int

	ContentColumn   string // defaults to "content"
	EmbeddingColumn string // defaults to "embedding"
	IDColumn        string // defaults to "langchain_id", type UUID
	MetadataColumns []Column

	// MetadataJSONColumn holds metadata keys without a typed column.
	// Defaults to "langchain_metadata"; set NoMetadataJSON to omit it.
	MetadataJSONColumn string
	NoMetadataJSON     bool

	// OverwriteExisting drops an existing table first.
	OverwriteExisting bool
}

// DocumentTableOptions configures InitDocumentTable.
type DocumentTableOptions struct {
	TableName  string
	SchemaName string // defaults to "public"

	ContentColumn   string // defaults to "page_content"
	MetadataColumns []Column

	// MetadataJSONColumn defaults to "langchain_metadata"; set
	// NoMetadataJSON to omit it.
	MetadataJSONColumn string
	NoMetadataJSON     bool
}

// InitVectorstoreTable creates a table for vector embeddings. The vector
// extension is created if missing; similarity search itself is entirely
// delegated to it.
func (e *Engine) InitVectorstoreTable(ctx context.Context, opts VectorstoreTableOptions) error {
	if opts.TableName == "" {
		return fmt.Errorf("vectorstore table: TableName is required")
	}
	if opts.VectorSize <= 0 {
		return fmt.Errorf("vectorstore table: VectorSize must be positive, got %d", opts.VectorSize)
	}

	schemaName := defaultString(opts.SchemaName, DefaultSchemaName)
	contentColumn := defaultString(opts.ContentColumn, "content")
	embeddingColumn := defaultString(opts.EmbeddingColumn, "embedding")
	idColumn := defaultString(opts.IDColumn, "langchain_id")
	metadataJSONColumn := defaultString(opts.MetadataJSONColumn, "langchain_metadata")

	if _, err := e.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	if opts.OverwriteExisting {
		stmt := fmt.Sprintf(`DROP TABLE IF EXISTS %q.%q`, schemaName, opts.TableName)
		if _, err := e.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %q.%q(\n", schemaName, opts.TableName)
	fmt.Fprintf(&b, "%q UUID PRIMARY KEY,\n", idColumn)
	fmt.Fprintf(&b, "%q TEXT NOT NULL,\n", contentColumn)
	fmt.Fprintf(&b, "%q vector(%d) NOT NULL", embeddingColumn, opts.VectorSize)
	for _, column := range opts.MetadataColumns {
		nullable := ""
		if !column.Nullable {
			nullable = " NOT NULL"
		}
		fmt.Fprintf(&b, ",\n%q %s%s", column.Name, column.DataType, nullable)
	}
	if !opts.NoMetadataJSON {
		fmt.Fprintf(&b, ",\n%q JSON", metadataJSONColumn)
	}
	b.WriteString("\n);")

	log.Debug("creating vectorstore table %q.%q", schemaName, opts.TableName)
	if _, err := e.pool.Exec(ctx, b.String()); err != nil {
		return fmt.Errorf("failed to create vectorstore table: %w", err)
	}
	return nil
}

// InitChatHistoryTable creates the table used by the chathistory package.
// It is idempotent.
func (e *Engine) InitChatHistoryTable(ctx context.Context, tableName, schemaName string) error {
	if tableName == "" {
		return fmt.Errorf("chat history table: table name is required")
	}
	schemaName = defaultString(schemaName, DefaultSchemaName)

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q.%q(
id SERIAL PRIMARY KEY,
session_id TEXT NOT NULL,
data JSONB NOT NULL,
type TEXT NOT NULL
);`, schemaName, tableName)

	log.Debug("creating chat history table %q.%q", schemaName, tableName)
	if _, err := e.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create chat history table: %w", err)
	}
	return nil
}

// InitDocumentTable creates a table for saving documents. An existing table
// with the same name makes this fail; the caller owns the decision to drop.
func (e *Engine) InitDocumentTable(ctx context.Context, opts DocumentTableOptions) error {
	if opts.TableName == "" {
		return fmt.Errorf("document table: TableName is required")
	}
	schemaName := defaultString(opts.SchemaName, DefaultSchemaName)
	contentColumn := defaultString(opts.ContentColumn, "page_content")
	metadataJSONColumn := defaultString(opts.MetadataJSONColumn, "langchain_metadata")

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %q.%q(\n", schemaName, opts.TableName)
	fmt.Fprintf(&b, "%q TEXT NOT NULL", contentColumn)
	for _, column := range opts.MetadataColumns {
		nullable := ""
		if !column.Nullable {
			nullable = " NOT NULL"
		}
		fmt.Fprintf(&b, ",\n%q %s%s", column.Name, column.DataType, nullable)
	}
	if !opts.NoMetadataJSON {
		fmt.Fprintf(&b, ",\n%q JSON", metadataJSONColumn)
	}
	b.WriteString("\n);")

	log.Debug("creating document table %q.%q", schemaName, opts.TableName)
	if _, err := e.pool.Exec(ctx, b.String()); err != nil {
		return fmt.Errorf("failed to create document table: %w", err)
	}
	return nil
}

// InitCheckpointTable creates the checkpoint table and its writes sibling
// used by the checkpoint package. Pass an empty table name to use
// DefaultCheckpointTable.
func (e *Engine) InitCheckpointTable(ctx context.Context, tableName, schemaName string) error {
	tableName = defaultString(tableName, DefaultCheckpointTable)
	schemaName = defaultString(schemaName, DefaultSchemaName)

	checkpoints := fmt.Sprintf(`CREATE TABLE %q.%q(
thread_id TEXT NOT NULL,
checkpoint_ns TEXT NOT NULL DEFAULT '',
checkpoint_id TEXT NOT NULL,
parent_checkpoint_id TEXT,
type TEXT,
checkpoint BYTEA,
metadata BYTEA,
PRIMARY KEY (thread_id, checkpoint_ns, checkpoint_id)
);`, schemaName, tableName)

	writes := fmt.Sprintf(`CREATE TABLE %q.%q(
thread_id TEXT NOT NULL,
checkpoint_ns TEXT NOT NULL DEFAULT '',
checkpoint_id TEXT NOT NULL,
task_id TEXT NOT NULL,
idx INTEGER NOT NULL,
channel TEXT NOT NULL,
type TEXT,
blob BYTEA NOT NULL,
task_path TEXT NOT NULL DEFAULT '',
PRIMARY KEY (thread_id, checkpoint_ns, checkpoint_id, task_id, idx)
);`, schemaName, tableName+"_writes")

	log.Debug("creating checkpoint tables %q.%q", schemaName, tableName)
	if _, err := e.pool.Exec(ctx, checkpoints); err != nil {
		return fmt.Errorf("failed to create checkpoint table: %w", err)
	}
	if _, err := e.pool.Exec(ctx, writes); err != nil {
		return fmt.Errorf("failed to create checkpoint writes table: %w", err)
	}
	return nil
}

// LoadTableSchema returns the column name to data type mapping of an
// existing table. An unknown table is an error.
func (e *Engine) LoadTableSchema(ctx context.Context, tableName, schemaName string) (map[string]string, error) {
	schemaName = defaultString(schemaName, DefaultSchemaName)

	rows, err := e.pool.Query(ctx,
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = $1 AND table_schema = $2",
		tableName, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to load table schema: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		columns[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q.%q does not exist", schemaName, tableName)
	}
	return columns, nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
