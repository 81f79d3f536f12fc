// Package embedding computes embeddings inside the database through the
// google_ml_integration extension.
//
// ServerEmbeddings calls the in-database embedding() function for query
// texts; document batches must be embedded client side. When used as the
// embedder of a vectorstore.Store, the query embedding is inlined into the
// search SQL so no vector crosses the wire:
//
//	emb, err := embedding.NewServerEmbeddings(ctx, eng, "textembedding-gecko")
//	store, err := vectorstore.New(ctx, eng, emb, "documents")
//
// ModelManager registers and inspects the models the extension exposes.
package embedding
