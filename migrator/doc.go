// Package migrator moves embeddings out of the legacy PGVector layout
// (langchain_pg_collection / langchain_pg_embedding) into a dedicated
// vectorstore table.
//
//	m := migrator.New(eng)
//	names, err := m.ListCollections(ctx)
//	err = m.Migrate(ctx, "docs", migrator.Options{
//		DestinationTable: "documents",
//		MetadataColumns:  []string{"source"},
//		UseJSONMetadata:  true,
//	})
//
// Metadata must be routed into typed columns (MetadataColumns), the JSON
// column (UseJSONMetadata) or both; Migrate refuses options that would drop
// it.
//
// Migrate copies in batches, verifies the destination row count against the
// source before returning, and only then honors DeleteOriginal. The
// destination table must already exist with the vectorstore layout; create
// it with engine.InitVectorstoreTable.
package migrator
