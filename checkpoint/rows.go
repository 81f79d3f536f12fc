package checkpoint

import "github.com/jackc/pgx/v5"

type rowScanner = pgx.Rows
