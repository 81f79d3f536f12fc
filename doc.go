// Package alloydbpg integrates langchaingo with AlloyDB for PostgreSQL.
//
// The module is organized around an engine.Engine, a thin wrapper over a
// pgx connection pool that also owns the DDL for every table the other
// packages use:
//
//   - vectorstore: a langchaingo vector store over a pgvector column, with
//     HNSW / IVFFlat / IVF / ScaNN index management and MMR re-ranking
//   - loader: document loading from tables or queries, and the matching
//     DocumentSaver write path
//   - chathistory: per-session chat message persistence implementing
//     schema.ChatMessageHistory
//   - checkpoint: durable graph execution state with pending writes
//   - migrator: batch migration out of the legacy PGVector table layout
//   - embedding: in-database embedding models via google_ml_integration
//
// A minimal end to end flow:
//
//	eng, err := engine.New(ctx, engine.Config{ConnString: dsn})
//	err = eng.InitVectorstoreTable(ctx, engine.VectorstoreTableOptions{
//		TableName:  "documents",
//		VectorSize: 768,
//	})
//	store, err := vectorstore.New(ctx, eng, embedder, "documents")
//	ids, err := store.AddDocuments(ctx, docs)
//	found, err := store.SimilaritySearch(ctx, "query", 4)
//
// Everything that talks to the database accepts a context.Context and goes
// through the engine.DBPool interface, so tests run against pgxmock without
// a live instance.
package alloydbpg
