package checkpoint

import (
	"context"
	"fmt"

	"github.com/smallnest/alloydbpg/engine"
)

// Saver persists graph checkpoints in the tables created by
// Engine.InitCheckpointTable.
type Saver struct {
	pool engine.DBPool

	tableName  string
	schemaName string
	serializer Serializer
}

// SaverOption configures a Saver.
type SaverOption func(*Saver)

// WithTableName sets the checkpoint table, default "checkpoints". The
// writes table is always "<table>_writes".
func WithTableName(name string) SaverOption {
	return func(s *Saver) { s.tableName = name }
}

// WithSchemaName sets the table schema, default "public".
func WithSchemaName(name string) SaverOption {
	return func(s *Saver) { s.schemaName = name }
}

// WithSerializer replaces the default JSONSerializer.
func WithSerializer(serializer Serializer) SaverOption {
	return func(s *Saver) { s.serializer = serializer }
}

// NewSaver creates a Saver and validates that both checkpoint tables exist.
func NewSaver(ctx context.Context, eng *engine.Engine, opts ...SaverOption) (*Saver, error) {
	s := &Saver{
		pool:       eng.Pool(),
		tableName:  engine.DefaultCheckpointTable,
		schemaName: engine.DefaultSchemaName,
		serializer: JSONSerializer{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := eng.LoadTableSchema(ctx, s.tableName, s.schemaName); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	if _, err := eng.LoadTableSchema(ctx, s.tableName+"_writes", s.schemaName); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	return s, nil
}

// Put stores a checkpoint and returns the config addressing it. The config
// passed in addresses the parent checkpoint.
func (s *Saver) Put(ctx context.Context, config Config, cp Checkpoint, metadata Metadata) (Config, error) {
	cpType, cpData, err := s.serializer.Dumps(cp)
	if err != nil {
		return Config{}, fmt.Errorf("failed to serialize checkpoint: %w", err)
	}
	_, metaData, err := s.serializer.Dumps(metadata)
	if err != nil {
		return Config{}, fmt.Errorf("failed to serialize metadata: %w", err)
	}

	var parentID any
	if config.CheckpointID != "" {
		parentID = config.CheckpointID
	}

	stmt := fmt.Sprintf(`INSERT INTO %q.%q
(thread_id, checkpoint_ns, checkpoint_id, parent_checkpoint_id, type, checkpoint, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (thread_id, checkpoint_ns, checkpoint_id)
DO UPDATE SET parent_checkpoint_id = EXCLUDED.parent_checkpoint_id, type = EXCLUDED.type,
checkpoint = EXCLUDED.checkpoint, metadata = EXCLUDED.metadata`,
		s.schemaName, s.tableName)

	_, err = s.pool.Exec(ctx, stmt,
		config.ThreadID, config.CheckpointNS, cp.ID, parentID, cpType, cpData, metaData)
	if err != nil {
		return Config{}, fmt.Errorf("failed to store checkpoint: %w", err)
	}

	return Config{
		ThreadID:     config.ThreadID,
		CheckpointNS: config.CheckpointNS,
		CheckpointID: cp.ID,
	}, nil
}

// PutWrites stages intermediate channel writes against the checkpoint the
// config addresses. taskPath locates the writing task within the graph; it
// may be empty.
func (s *Saver) PutWrites(ctx context.Context, config Config, writes []PendingWrite, taskID, taskPath string) error {
	stmt := fmt.Sprintf(`INSERT INTO %q.%q
(thread_id, checkpoint_ns, checkpoint_id, task_id, idx, channel, type, blob, task_path)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (thread_id, checkpoint_ns, checkpoint_id, task_id, idx) DO NOTHING`,
		s.schemaName, s.tableName+"_writes")

	for idx, write := range writes {
		valueType, valueData, err := s.serializer.Dumps(write.Value)
		if err != nil {
			return fmt.Errorf("failed to serialize write: %w", err)
		}
		_, err = s.pool.Exec(ctx, stmt,
			config.ThreadID, config.CheckpointNS, config.CheckpointID,
			taskID, idx, write.Channel, valueType, valueData, taskPath)
		if err != nil {
			return fmt.Errorf("failed to store write: %w", err)
		}
	}
	return nil
}

// GetTuple returns the checkpoint the config addresses, or the latest of the
// thread when no checkpoint id is given. A missing checkpoint returns nil.
func (s *Saver) GetTuple(ctx context.Context, config Config) (*Tuple, error) {
	var (
		stmt string
		args []any
	)
	if config.CheckpointID != "" {
		stmt = fmt.Sprintf(`SELECT thread_id, checkpoint_ns, checkpoint_id, parent_checkpoint_id, type, checkpoint, metadata
FROM %q.%q WHERE thread_id = $1 AND checkpoint_ns = $2 AND checkpoint_id = $3`,
			s.schemaName, s.tableName)
		args = []any{config.ThreadID, config.CheckpointNS, config.CheckpointID}
	} else {
		stmt = fmt.Sprintf(`SELECT thread_id, checkpoint_ns, checkpoint_id, parent_checkpoint_id, type, checkpoint, metadata
FROM %q.%q WHERE thread_id = $1 AND checkpoint_ns = $2 ORDER BY checkpoint_id DESC LIMIT 1`,
			s.schemaName, s.tableName)
		args = []any{config.ThreadID, config.CheckpointNS}
	}

	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	tuples, err := s.scanTuples(rows)
	if err != nil {
		return nil, err
	}
	if len(tuples) == 0 {
		return nil, nil
	}

	tuple := tuples[0]
	writes, err := s.loadWrites(ctx, tuple.Config)
	if err != nil {
		return nil, err
	}
	tuple.PendingWrites = writes
	return &tuple, nil
}

// ListOptions filter and bound List.
type ListOptions struct {
	// Filter keeps checkpoints whose metadata contains every given
	// key/value pair.
	Filter Metadata
	// Before keeps checkpoints older than the addressed one.
	Before *Config
	// Limit bounds the result count; zero means no limit.
	Limit int
}

// List returns the thread's checkpoints, newest first. Pending writes are
// not loaded.
func (s *Saver) List(ctx context.Context, config Config, opts ListOptions) ([]Tuple, error) {
	stmt := fmt.Sprintf(`SELECT thread_id, checkpoint_ns, checkpoint_id, parent_checkpoint_id, type, checkpoint, metadata
FROM %q.%q WHERE thread_id = $1 AND checkpoint_ns = $2`,
		s.schemaName, s.tableName)
	args := []any{config.ThreadID, config.CheckpointNS}

	if opts.Before != nil && opts.Before.CheckpointID != "" {
		stmt += fmt.Sprintf(" AND checkpoint_id < $%d", len(args)+1)
		args = append(args, opts.Before.CheckpointID)
	}
	stmt += " ORDER BY checkpoint_id DESC"
	if opts.Limit > 0 && len(opts.Filter) == 0 {
		stmt += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	tuples, err := s.scanTuples(rows)
	if err != nil {
		return nil, err
	}

	if len(opts.Filter) > 0 {
		filtered := tuples[:0]
		for _, tuple := range tuples {
			if metadataMatches(tuple.Metadata, opts.Filter) {
				filtered = append(filtered, tuple)
			}
		}
		tuples = filtered
		if opts.Limit > 0 && len(tuples) > opts.Limit {
			tuples = tuples[:opts.Limit]
		}
	}
	return tuples, nil
}

// DeleteThread removes every checkpoint and staged write of a thread across
// all namespaces.
func (s *Saver) DeleteThread(ctx context.Context, threadID string) error {
	stmt := fmt.Sprintf("DELETE FROM %q.%q WHERE thread_id = $1", s.schemaName, s.tableName)
	if _, err := s.pool.Exec(ctx, stmt, threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}
	stmt = fmt.Sprintf("DELETE FROM %q.%q WHERE thread_id = $1", s.schemaName, s.tableName+"_writes")
	if _, err := s.pool.Exec(ctx, stmt, threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoint writes: %w", err)
	}
	return nil
}

func (s *Saver) scanTuples(rows rowScanner) ([]Tuple, error) {
	defer rows.Close()

	var tuples []Tuple
	for rows.Next() {
		var (
			threadID, checkpointNS, checkpointID string
			parentID, cpType                     *string
			cpData, metaData                     []byte
		)
		if err := rows.Scan(&threadID, &checkpointNS, &checkpointID, &parentID, &cpType, &cpData, &metaData); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}

		tuple := Tuple{
			Config: Config{ThreadID: threadID, CheckpointNS: checkpointNS, CheckpointID: checkpointID},
		}
		typ := ""
		if cpType != nil {
			typ = *cpType
		}
		if err := s.serializer.Loads(typ, cpData, &tuple.Checkpoint); err != nil {
			return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
		}
		if len(metaData) > 0 {
			if err := s.serializer.Loads(typ, metaData, &tuple.Metadata); err != nil {
				return nil, fmt.Errorf("failed to deserialize metadata: %w", err)
			}
		}
		if parentID != nil && *parentID != "" {
			tuple.ParentConfig = &Config{
				ThreadID:     threadID,
				CheckpointNS: checkpointNS,
				CheckpointID: *parentID,
			}
		}
		tuples = append(tuples, tuple)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}
	return tuples, nil
}

func (s *Saver) loadWrites(ctx context.Context, config Config) ([]PendingWrite, error) {
	stmt := fmt.Sprintf(`SELECT task_id, channel, type, blob FROM %q.%q
WHERE thread_id = $1 AND checkpoint_ns = $2 AND checkpoint_id = $3 ORDER BY task_id, idx`,
		s.schemaName, s.tableName+"_writes")

	rows, err := s.pool.Query(ctx, stmt, config.ThreadID, config.CheckpointNS, config.CheckpointID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint writes: %w", err)
	}
	defer rows.Close()

	var writes []PendingWrite
	for rows.Next() {
		var (
			taskID, channel string
			valueType       *string
			blob            []byte
		)
		if err := rows.Scan(&taskID, &channel, &valueType, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan write row: %w", err)
		}
		typ := ""
		if valueType != nil {
			typ = *valueType
		}
		var value any
		if err := s.serializer.Loads(typ, blob, &value); err != nil {
			return nil, fmt.Errorf("failed to deserialize write: %w", err)
		}
		writes = append(writes, PendingWrite{TaskID: taskID, Channel: channel, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating write rows: %w", err)
	}
	return writes, nil
}

func metadataMatches(metadata, filter Metadata) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}
