package vectorstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type (
	pgFieldDescription = pgconn.FieldDescription
	rowsCloser         = pgx.Rows
)

// txRows commits the surrounding transaction when the rows are closed, so
// SET LOCAL query options stay scoped to a single search.
type txRows struct {
	pgx.Rows
	tx   pgx.Tx
	ctx  context.Context
	done bool
}

func (r *txRows) Close() {
	r.Rows.Close()
	if r.done {
		return
	}
	r.done = true
	if err := r.tx.Commit(r.ctx); err != nil {
		_ = r.tx.Rollback(r.ctx)
	}
}
