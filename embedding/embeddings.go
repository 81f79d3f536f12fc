package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/smallnest/alloydbpg/engine"
)

// ErrEmbedDocumentsUnsupported is returned by EmbedDocuments; in-database
// models only embed single queries.
var ErrEmbedDocumentsUnsupported = errors.New(
	"server-side embedding supports queries only, embed documents client side")

// ServerEmbeddings computes query embeddings inside the database with the
// embedding() SQL function of a registered model. It implements
// embeddings.Embedder for the query path.
type ServerEmbeddings struct {
	pool    engine.DBPool
	modelID string
}

var _ embeddings.Embedder = (*ServerEmbeddings)(nil)

// NewServerEmbeddings creates a ServerEmbeddings for a registered model. The
// model id is validated against google_ml.model_info_view.
func NewServerEmbeddings(ctx context.Context, eng *engine.Engine, modelID string) (*ServerEmbeddings, error) {
	if modelID == "" {
		return nil, fmt.Errorf("server embeddings: model id is required")
	}

	manager := NewModelManagerWithPool(eng.Pool())
	model, err := manager.GetModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, fmt.Errorf("server embeddings: model %q is not registered", modelID)
	}

	return &ServerEmbeddings{pool: eng.Pool(), modelID: modelID}, nil
}

// NewServerEmbeddingsWithPool creates a ServerEmbeddings without validating
// the model.
func NewServerEmbeddingsWithPool(pool engine.DBPool, modelID string) *ServerEmbeddings {
	return &ServerEmbeddings{pool: pool, modelID: modelID}
}

// EmbedQuery computes the embedding of one text in the database.
func (s *ServerEmbeddings) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var value any
	err := s.pool.QueryRow(ctx, "SELECT embedding($1, $2)::vector", s.modelID, text).Scan(&value)
	if err != nil {
		return nil, fmt.Errorf("failed to compute embedding: %w", err)
	}

	switch v := value.(type) {
	case pgvector.Vector:
		return v.Slice(), nil
	case string:
		return parseVectorString(v)
	case []float32:
		return v, nil
	default:
		return nil, fmt.Errorf("unexpected embedding result type %T", value)
	}
}

// EmbedDocuments always fails with ErrEmbedDocumentsUnsupported.
func (s *ServerEmbeddings) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, ErrEmbedDocumentsUnsupported
}

// QueryInlineSQL renders the embedding computation as a SQL expression, so
// similarity searches can run without a client round trip for the query
// vector.
func (s *ServerEmbeddings) QueryInlineSQL(text string) string {
	return fmt.Sprintf("embedding(%s, %s)::vector", quoteLiteral(s.modelID), quoteLiteral(text))
}

func parseVectorString(s string) ([]float32, error) {
	trimmed := strings.Trim(strings.TrimSpace(s), "[]")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, ",")
	vec := make([]float32, len(parts))
	for i, part := range parts {
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%g", &f); err != nil {
			return nil, fmt.Errorf("failed to parse embedding value %q: %w", part, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

// quoteLiteral escapes a string for embedding as a SQL literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
