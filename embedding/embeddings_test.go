package embedding

import (
	"context"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"

	"github.com/smallnest/alloydbpg/engine"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestEmbedQuery(t *testing.T) {
	mock := newMockPool(t)
	s := NewServerEmbeddingsWithPool(mock, "textembedding-gecko")
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT embedding($1, $2)::vector")).
		WithArgs("textembedding-gecko", "hello").
		WillReturnRows(pgxmock.NewRows([]string{"embedding"}).AddRow("[0.1,0.2,0.3]"))

	vec, err := s.EmbedQuery(ctx, "hello")
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, vec, 1e-6)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbedDocuments_Unsupported(t *testing.T) {
	s := NewServerEmbeddingsWithPool(newMockPool(t), "textembedding-gecko")

	_, err := s.EmbedDocuments(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrEmbedDocumentsUnsupported)
}

func TestQueryInlineSQL(t *testing.T) {
	s := NewServerEmbeddingsWithPool(newMockPool(t), "textembedding-gecko")

	assert.Equal(t,
		"embedding('textembedding-gecko', 'hello')::vector",
		s.QueryInlineSQL("hello"))

	// single quotes in the text must be doubled
	assert.Equal(t,
		"embedding('textembedding-gecko', 'it''s fine')::vector",
		s.QueryInlineSQL("it's fine"))
}

func TestNewServerEmbeddings_ValidatesModel(t *testing.T) {
	mock := newMockPool(t)
	eng := engine.NewWithPool(mock)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM google_ml.model_info_view WHERE model_id = $1")).
		WithArgs("missing-model").
		WillReturnRows(pgxmock.NewRows([]string{
			"model_id", "model_request_url", "model_provider", "model_type",
			"model_qualified_name", "model_auth_type", "model_auth_id",
		}))

	_, err := NewServerEmbeddings(ctx, eng, "missing-model")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "is not registered")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseVectorString(t *testing.T) {
	vec, err := parseVectorString("[1, -0.5, 2e-1]")
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, -0.5, 0.2}, vec, 1e-6)

	vec, err = parseVectorString("[]")
	assert.NoError(t, err)
	assert.Nil(t, vec)

	_, err = parseVectorString("[x]")
	assert.Error(t, err)
}
