package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/alloydbpg/log"
)

// ApplyVectorIndex creates a vector index on the embedding column. Passing
// an ExactNearestNeighbor index drops any existing index instead, so that
// searches run exhaustively.
func (s *Store) ApplyVectorIndex(ctx context.Context, index Index, concurrently bool) error {
	if _, ok := index.(*ExactNearestNeighbor); ok {
		return s.DropVectorIndex(ctx, index.Base().Name)
	}

	if index.IndexType() == (&ScaNNIndex{}).IndexType() {
		if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS alloydb_scann"); err != nil {
			return fmt.Errorf("failed to create alloydb_scann extension: %w", err)
		}
	}

	base := index.Base()
	name := s.indexName(base.Name)
	function := base.strategy().IndexFunction

	var b strings.Builder
	b.WriteString("CREATE INDEX ")
	if concurrently {
		b.WriteString("CONCURRENTLY ")
	}
	fmt.Fprintf(&b, "%q ON %q.%q USING %s (%q %s)",
		name, s.schemaName, s.tableName, index.IndexType(), s.embeddingColumn, function)
	if opts := index.IndexOptions(); opts != "" {
		b.WriteString(" WITH " + opts)
	}
	if base.PartialPredicate != "" {
		b.WriteString(" WHERE " + base.PartialPredicate)
	}

	log.Debug("creating vector index %q on %q.%q", name, s.schemaName, s.tableName)
	if _, err := s.pool.Exec(ctx, b.String()); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

// ReIndex rebuilds the named index, or the default index when name is empty.
func (s *Store) ReIndex(ctx context.Context, name string) error {
	stmt := fmt.Sprintf("REINDEX INDEX %q", s.indexName(name))
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to reindex: %w", err)
	}
	return nil
}

// DropVectorIndex drops the named index, or the default index when name is
// empty. Dropping a missing index is not an error.
func (s *Store) DropVectorIndex(ctx context.Context, name string) error {
	stmt := fmt.Sprintf("DROP INDEX IF EXISTS %q", s.indexName(name))
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to drop vector index: %w", err)
	}
	return nil
}

// IsValidIndex reports whether the named index exists on the table.
func (s *Store) IsValidIndex(ctx context.Context, name string) (bool, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT indexname FROM pg_indexes WHERE tablename = $1 AND schemaname = $2 AND indexname = $3",
		s.tableName, s.schemaName, s.indexName(name))
	if err != nil {
		return false, fmt.Errorf("failed to look up index: %w", err)
	}
	defer rows.Close()

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("error checking index: %w", err)
	}
	return found, nil
}

// SetMaintenanceWorkMem sizes the memory available to index builds, based on
// the row count and embedding dimension.
func (s *Store) SetMaintenanceWorkMem(ctx context.Context, numRows, vectorSize int) error {
	// Index builds need the whole vector data set in memory plus overhead.
	bytes := float64(numRows*vectorSize) * 4 * 1.5
	mb := int(bytes / (1 << 20))
	if mb < 64 {
		mb = 64
	}
	stmt := fmt.Sprintf("SET maintenance_work_mem TO '%d MB'", mb)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to set maintenance_work_mem: %w", err)
	}
	return nil
}

func (s *Store) indexName(name string) string {
	if name != "" {
		return name
	}
	return s.tableName + DefaultIndexNameSuffix
}
