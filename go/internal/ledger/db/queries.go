package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const transactionColumns = `id, user_id, delta, type, reason, related_entity_id,
       previous_balance, new_balance, metadata, awarded_at`

const getTransactionByKey = `
SELECT ` + transactionColumns + `
FROM point_transactions
WHERE user_id = $1 AND type = $2 AND related_entity_id = $3
ORDER BY awarded_at DESC
LIMIT 1
`

type GetTransactionByKeyParams struct {
	UserID          uuid.UUID
	Type            string
	RelatedEntityID string
}

func (q *Queries) GetTransactionByKey(ctx context.Context, arg GetTransactionByKeyParams) (PointTransaction, error) {
	row := q.db.QueryRowContext(ctx, getTransactionByKey, arg.UserID, arg.Type, arg.RelatedEntityID)
	return scanTransaction(row)
}

const getLatestTaskTransaction = `
SELECT ` + transactionColumns + `
FROM point_transactions
WHERE user_id = $1
  AND related_entity_id = $2
  AND type IN ('TASK_COMPLETED', 'TASK_UNCOMPLETED')
ORDER BY awarded_at DESC
LIMIT 1
`

type GetLatestTaskTransactionParams struct {
	UserID          uuid.UUID
	RelatedEntityID string
}

func (q *Queries) GetLatestTaskTransaction(ctx context.Context, arg GetLatestTaskTransactionParams) (PointTransaction, error) {
	row := q.db.QueryRowContext(ctx, getLatestTaskTransaction, arg.UserID, arg.RelatedEntityID)
	return scanTransaction(row)
}

const insertTransaction = `
INSERT INTO point_transactions (id, user_id, delta, type, reason, related_entity_id,
                                previous_balance, new_balance, metadata, awarded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + transactionColumns + `
`

type InsertTransactionParams struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Delta           int32
	Type            string
	Reason          string
	RelatedEntityID string
	PreviousBalance int32
	NewBalance      int32
	Metadata        pqtype.NullRawMessage
	AwardedAt       time.Time
}

func (q *Queries) InsertTransaction(ctx context.Context, arg InsertTransactionParams) (PointTransaction, error) {
	row := q.db.QueryRowContext(ctx, insertTransaction,
		arg.ID,
		arg.UserID,
		arg.Delta,
		arg.Type,
		arg.Reason,
		arg.RelatedEntityID,
		arg.PreviousBalance,
		arg.NewBalance,
		arg.Metadata,
		arg.AwardedAt,
	)
	return scanTransaction(row)
}

// addToBalance is the only writer of the cumulative XP counter. The increment
// happens in SQL, never via read-modify-write.
const addToBalance = `
INSERT INTO point_balances (user_id, xp)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET xp = point_balances.xp + EXCLUDED.xp
RETURNING xp
`

type AddToBalanceParams struct {
	UserID uuid.UUID
	Delta  int32
}

func (q *Queries) AddToBalance(ctx context.Context, arg AddToBalanceParams) (int32, error) {
	var xp int32
	err := q.db.QueryRowContext(ctx, addToBalance, arg.UserID, arg.Delta).Scan(&xp)
	return xp, err
}

const getBalance = `
SELECT xp FROM point_balances WHERE user_id = $1
`

func (q *Queries) GetBalance(ctx context.Context, userID uuid.UUID) (int32, error) {
	var xp int32
	err := q.db.QueryRowContext(ctx, getBalance, userID).Scan(&xp)
	return xp, err
}

const listTransactions = `
SELECT ` + transactionColumns + `
FROM point_transactions
WHERE user_id = $1
ORDER BY awarded_at DESC
LIMIT $2
`

type ListTransactionsParams struct {
	UserID uuid.UUID
	Limit  int32
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]PointTransaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PointTransaction
	for rows.Next() {
		var i PointTransaction
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Delta,
			&i.Type,
			&i.Reason,
			&i.RelatedEntityID,
			&i.PreviousBalance,
			&i.NewBalance,
			&i.Metadata,
			&i.AwardedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (PointTransaction, error) {
	var i PointTransaction
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Delta,
		&i.Type,
		&i.Reason,
		&i.RelatedEntityID,
		&i.PreviousBalance,
		&i.NewBalance,
		&i.Metadata,
		&i.AwardedAt,
	)
	return i, err
}
