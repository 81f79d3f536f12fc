package vectorstore

// Option configures a Store at construction time.
type Option func(*Store)

// WithSchemaName sets the table schema, default "public".
func WithSchemaName(name string) Option {
	return func(s *Store) { s.schemaName = name }
}

// WithIDColumn sets the primary key column, default "langchain_id".
func WithIDColumn(name string) Option {
	return func(s *Store) { s.idColumn = name }
}

// WithContentColumn sets the document text column, default "content".
func WithContentColumn(name string) Option {
	return func(s *Store) { s.contentColumn = name }
}

// WithEmbeddingColumn sets the vector column, default "embedding".
func WithEmbeddingColumn(name string) Option {
	return func(s *Store) { s.embeddingColumn = name }
}

// WithMetadataColumns names the typed columns treated as document metadata.
func WithMetadataColumns(names []string) Option {
	return func(s *Store) { s.metadataColumns = names }
}

// WithIgnoreMetadataColumns names columns excluded from metadata. Mutually
// exclusive with WithMetadataColumns; when set, every column other than id,
// content, embedding and the ignored ones becomes metadata.
func WithIgnoreMetadataColumns(names []string) Option {
	return func(s *Store) { s.ignoreMetadataColumns = names }
}

// WithMetadataJSONColumn sets the JSON column for untyped metadata, default
// "langchain_metadata".
func WithMetadataJSONColumn(name string) Option {
	return func(s *Store) { s.metadataJSONColumn = name }
}

// WithDistanceStrategy sets the similarity metric, default CosineDistance.
func WithDistanceStrategy(strategy DistanceStrategy) Option {
	return func(s *Store) { s.distanceStrategy = strategy }
}

// WithK sets the default result count for searches, default 4.
func WithK(k int) Option {
	return func(s *Store) { s.k = k }
}

// WithFetchK sets the candidate pool size for MMR search, default 20.
func WithFetchK(fetchK int) Option {
	return func(s *Store) { s.fetchK = fetchK }
}

// WithLambdaMult balances relevance against diversity for MMR search in
// [0, 1], default 0.5.
func WithLambdaMult(lambda float64) Option {
	return func(s *Store) { s.lambdaMult = lambda }
}

// WithIndexQueryOptions applies index tuning parameters with SET LOCAL in a
// transaction around every search.
func WithIndexQueryOptions(opts ...QueryOptions) Option {
	return func(s *Store) { s.indexQueryOptions = opts }
}
