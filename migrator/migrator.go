package migrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/smallnest/alloydbpg/engine"
	"github.com/smallnest/alloydbpg/log"
)

const (
	collectionsTable = "langchain_pg_collection"
	embeddingsTable  = "langchain_pg_embedding"
)

// ErrCollectionNotFound is returned when the named PGVector collection does
// not exist.
var ErrCollectionNotFound = errors.New("collection not found")

// Migrator copies embeddings out of the legacy PGVector two-table layout
// into a dedicated vectorstore table.
type Migrator struct {
	pool engine.DBPool
}

// New creates a Migrator on the engine's pool.
func New(eng *engine.Engine) *Migrator {
	return &Migrator{pool: eng.Pool()}
}

// Row is one embedding row of a PGVector collection.
type Row struct {
	ID        string
	Content   string
	Embedding string
	Metadata  []byte
}

// Options configure Migrate.
type Options struct {
	// DestinationTable defaults to the collection name.
	DestinationTable string
	// DestinationSchema defaults to "public".
	DestinationSchema string

	// MetadataColumns maps metadata keys into typed destination columns
	// instead of the JSON column.
	MetadataColumns []string

	// UseJSONMetadata copies the source metadata into the destination's
	// "langchain_metadata" JSON column. At least one of MetadataColumns
	// and UseJSONMetadata must be set so no metadata is dropped silently.
	UseJSONMetadata bool

	// BatchSize is the number of rows copied per insert, default 1000.
	BatchSize int
	// Concurrency is the number of batches copied in parallel, default 1.
	Concurrency int

	// DeleteOriginal drops the source rows after a successful copy.
	DeleteOriginal bool
}

// ListCollections returns the names of every PGVector collection.
func (m *Migrator) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := m.pool.Query(ctx, fmt.Sprintf("SELECT name FROM %s", collectionsTable))
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan collection row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collection rows: %w", err)
	}
	return names, nil
}

// ExtractCollection streams every row of a collection to fn. Returning an
// error from fn stops the iteration.
func (m *Migrator) ExtractCollection(ctx context.Context, collection string, fn func(Row) error) error {
	collectionID, err := m.collectionID(ctx, collection)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf(
		"SELECT id, document, embedding, cmetadata FROM %s WHERE collection_id = $1",
		embeddingsTable)
	rows, err := m.pool.Query(ctx, stmt, collectionID)
	if err != nil {
		return fmt.Errorf("failed to read collection %q: %w", collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.Content, &row.Embedding, &row.Metadata); err != nil {
			return fmt.Errorf("failed to scan embedding row: %w", err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating embedding rows: %w", err)
	}
	return nil
}

// Migrate copies a collection into the destination table and validates the
// row counts match before optionally deleting the source rows. The
// destination must already exist with the vectorstore layout, and the
// options must route metadata somewhere: typed columns, the JSON column or
// both.
func (m *Migrator) Migrate(ctx context.Context, collection string, opts Options) error {
	if len(opts.MetadataColumns) == 0 && !opts.UseJSONMetadata {
		return fmt.Errorf("migrator: either MetadataColumns or UseJSONMetadata must be set")
	}

	collectionID, err := m.collectionID(ctx, collection)
	if err != nil {
		return err
	}

	sourceCount, err := m.countSource(ctx, collectionID)
	if err != nil {
		return err
	}
	if sourceCount == 0 {
		log.Warn("collection %q has no rows, nothing to migrate", collection)
		return nil
	}

	destTable := opts.DestinationTable
	if destTable == "" {
		destTable = collection
		log.Warn("no destination table given, using collection name %q", collection)
	}
	destSchema := opts.DestinationSchema
	if destSchema == "" {
		destSchema = engine.DefaultSchemaName
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	if err := m.copyRows(ctx, collectionID, destSchema, destTable, opts, batchSize, sourceCount); err != nil {
		return err
	}

	destCount, err := m.countDestination(ctx, destSchema, destTable)
	if err != nil {
		return err
	}
	if destCount != sourceCount {
		return fmt.Errorf("migration of %q incomplete: %d of %d rows copied", collection, destCount, sourceCount)
	}

	if opts.DeleteOriginal {
		if _, err := m.pool.Exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE collection_id = $1", embeddingsTable), collectionID); err != nil {
			return fmt.Errorf("failed to delete source rows: %w", err)
		}
		if _, err := m.pool.Exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE uuid = $1", collectionsTable), collectionID); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}

	log.Info("migrated %d rows from collection %q to %q.%q", sourceCount, collection, destSchema, destTable)
	return nil
}

func (m *Migrator) copyRows(ctx context.Context, collectionID, destSchema, destTable string, opts Options, batchSize, total int) error {
	stmt := insertBatchStmt(destSchema, destTable, opts.MetadataColumns, opts.UseJSONMetadata)

	if opts.Concurrency <= 1 {
		for offset := 0; offset < total; offset += batchSize {
			if err := m.copyBatch(ctx, stmt, collectionID, batchSize, offset); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, opts.Concurrency)
	for offset := 0; offset < total; offset += batchSize {
		wg.Add(1)
		sem <- struct{}{}
		go func(offset int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := m.copyBatch(ctx, stmt, collectionID, batchSize, offset); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(offset)
	}
	wg.Wait()
	return firstErr
}

// copyBatch copies one page of source rows with a single INSERT ... SELECT.
func (m *Migrator) copyBatch(ctx context.Context, stmt, collectionID string, limit, offset int) error {
	args := []any{collectionID, limit, offset}
	if _, err := m.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to copy batch at offset %d: %w", offset, err)
	}
	log.Debug("copied batch at offset %d", offset)
	return nil
}

func insertBatchStmt(destSchema, destTable string, metadataColumns []string, useJSONMetadata bool) string {
	destColumns := []string{`"langchain_id"`, `"content"`, `"embedding"`}
	sourceExprs := []string{"id", "document", "embedding"}
	for _, name := range metadataColumns {
		destColumns = append(destColumns, fmt.Sprintf("%q", name))
		sourceExprs = append(sourceExprs, fmt.Sprintf("cmetadata->>%s", quoteLiteral(name)))
	}
	if useJSONMetadata {
		destColumns = append(destColumns, `"langchain_metadata"`)
		if len(metadataColumns) > 0 {
			quoted := make([]string, len(metadataColumns))
			for i, name := range metadataColumns {
				quoted[i] = quoteLiteral(name)
			}
			sourceExprs = append(sourceExprs, fmt.Sprintf("cmetadata - %s", strings.Join(quoted, " - ")))
		} else {
			sourceExprs = append(sourceExprs, "cmetadata")
		}
	}

	return fmt.Sprintf(
		`INSERT INTO %q.%q (%s) SELECT %s FROM %s WHERE collection_id = $1 ORDER BY id LIMIT $2 OFFSET $3 ON CONFLICT ("langchain_id") DO NOTHING`,
		destSchema, destTable,
		strings.Join(destColumns, ", "), strings.Join(sourceExprs, ", "),
		embeddingsTable)
}

func (m *Migrator) collectionID(ctx context.Context, collection string) (string, error) {
	rows, err := m.pool.Query(ctx,
		fmt.Sprintf("SELECT uuid FROM %s WHERE name = $1", collectionsTable), collection)
	if err != nil {
		return "", fmt.Errorf("failed to look up collection %q: %w", collection, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("error looking up collection %q: %w", collection, err)
		}
		return "", fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}
	var id string
	if err := rows.Scan(&id); err != nil {
		return "", fmt.Errorf("failed to scan collection id: %w", err)
	}
	return id, nil
}

func (m *Migrator) countSource(ctx context.Context, collectionID string) (int, error) {
	var count int
	err := m.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE collection_id = $1", embeddingsTable),
		collectionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count source rows: %w", err)
	}
	return count, nil
}

func (m *Migrator) countDestination(ctx context.Context, schema, table string) (int, error) {
	var count int
	err := m.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %q.%q", schema, table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count destination rows: %w", err)
	}
	return count, nil
}

// quoteLiteral escapes a string for embedding as a SQL literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
