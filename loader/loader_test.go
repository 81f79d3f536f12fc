package loader

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/tmc/langchaingo/schema"

	"github.com/smallnest/alloydbpg/engine"
)

func newMockEngine(t *testing.T) (*engine.Engine, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	t.Cleanup(mock.Close)
	return engine.NewWithPool(mock), mock
}

func docRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"page_content", "source", "langchain_metadata"}).
		AddRow("first document", "wiki", map[string]any{"lang": "en"}).
		AddRow("second document", "blog", nil)
}

func TestNewLoader_Validation(t *testing.T) {
	eng, _ := newMockEngine(t)

	_, err := NewLoader(eng)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "table name or query is required")

	_, err = NewLoader(eng, WithTableName("docs"), WithQuery("SELECT 1"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")

	_, err = NewLoader(eng, WithTableName("docs"), WithFormat("xml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestLoad_TableDefaults(t *testing.T) {
	eng, mock := newMockEngine(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."docs"`)).
		WillReturnRows(docRows())

	l, err := NewLoader(eng, WithTableName("docs"))
	assert.NoError(t, err)

	docs, err := l.Load(ctx)
	assert.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, "first document", docs[0].PageContent)
	assert.Equal(t, "wiki", docs[0].Metadata["source"])
	assert.Equal(t, "en", docs[0].Metadata["lang"])
	assert.Equal(t, "second document", docs[1].PageContent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_CustomQuery(t *testing.T) {
	eng, mock := newMockEngine(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT page_content, source FROM docs WHERE source = 'wiki'")).
		WillReturnRows(pgxmock.NewRows([]string{"page_content", "source"}).
			AddRow("only wiki", "wiki"))

	l, err := NewLoader(eng, WithQuery("SELECT page_content, source FROM docs WHERE source = 'wiki'"))
	assert.NoError(t, err)

	docs, err := l.Load(ctx)
	assert.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, "only wiki", docs[0].PageContent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_ContentColumnSelection(t *testing.T) {
	eng, mock := newMockEngine(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."docs"`)).
		WillReturnRows(docRows())

	l, err := NewLoader(eng,
		WithTableName("docs"),
		WithContentColumns([]string{"page_content", "source"}),
		WithMetadataColumns([]string{}),
		WithFormat("csv"))
	assert.NoError(t, err)

	docs, err := l.Load(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "first document, wiki", docs[0].PageContent)
	assert.NotContains(t, docs[0].Metadata, "source")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLazyLoad_StopsOnError(t *testing.T) {
	eng, mock := newMockEngine(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."docs"`)).
		WillReturnRows(docRows())

	l, err := NewLoader(eng, WithTableName("docs"))
	assert.NoError(t, err)

	stop := errors.New("stop")
	count := 0
	err = l.LazyLoad(ctx, func(schema.Document) error {
		count++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}

func TestFormatters(t *testing.T) {
	row := map[string]any{"title": "Go", "body": "fast"}
	columns := []string{"title", "body"}

	assert.Equal(t, "Go fast", textFormatter(row, columns))
	assert.Equal(t, "Go, fast", csvFormatter(row, columns))
	assert.Equal(t, "title: Go\nbody: fast", yamlFormatter(row, columns))
	assert.Equal(t, `{"body":"fast","title":"Go"}`, jsonFormatter(row, columns))
}

func TestFormatters_SkipMissingValues(t *testing.T) {
	row := map[string]any{"title": "Go"}
	columns := []string{"title", "missing"}

	assert.Equal(t, "Go", textFormatter(row, columns))
	assert.Equal(t, "Go", csvFormatter(row, columns))
}
