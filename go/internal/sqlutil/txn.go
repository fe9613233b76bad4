package sqlutil

import (
	"context"
	"database/sql"
)

// Run executes fn inside a transaction with the queries bound to it. Any
// error from fn rolls the whole thing back, so a partial claim or increment
// never becomes visible.
func Run[T any](
	ctx context.Context,
	db *sql.DB,
	newQueries func(*sql.Tx) *T,
	fn func(q *T) error,
) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	q := newQueries(tx)
	if err := fn(q); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
