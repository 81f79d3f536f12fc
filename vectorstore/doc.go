// Package vectorstore implements a langchaingo vector store on top of an
// AlloyDB (or PostgreSQL + pgvector) table.
//
// Documents live in a regular table with a typed column per metadata field,
// a JSON column for everything else and a pgvector embedding column. Create
// the table with engine.InitVectorstoreTable, then open a Store:
//
//	store, err := vectorstore.New(ctx, eng, embedder, "documents",
//		vectorstore.WithMetadataColumns([]string{"source"}),
//		vectorstore.WithDistanceStrategy(vectorstore.CosineDistance),
//	)
//
//	ids, err := store.AddDocuments(ctx, docs)
//	docs, err := store.SimilaritySearch(ctx, "query", 4,
//		vectorstores.WithScoreThreshold(0.8),
//		vectorstores.WithFilters("source = 'wiki'"),
//	)
//
// Approximate search indexes (HNSW, IVFFlat, IVF, ScaNN) are managed with
// ApplyVectorIndex, ReIndex and DropVectorIndex, and tuned per query with
// WithIndexQueryOptions. MaxMarginalRelevanceSearch re-ranks a candidate
// pool for diversity client side.
package vectorstore
