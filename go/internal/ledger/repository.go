package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/focusd/go/internal/ledger/db"
	"github.com/mcdev12/focusd/go/internal/models"
	"github.com/mcdev12/focusd/go/internal/sqlutil"
)

// uniqueViolation is the Postgres error code the exactly-once index raises.
const uniqueViolation = "23505"

// Repository implements ledger data access operations
type Repository struct {
	database *sql.DB
	queries  *db.Queries
}

// NewRepository creates a new ledger repository
func NewRepository(database *sql.DB) *Repository {
	return &Repository{
		database: database,
		queries:  db.New(database),
	}
}

// Award appends one immutable transaction and moves the balance in the same
// transaction. The balance update is an atomic SQL increment; previous/new
// balances recorded on the row come from that increment, never from a stale
// read. A unique-index conflict from a concurrent duplicate rolls everything
// back and surfaces as ErrDuplicateAward.
func (r *Repository) Award(ctx context.Context, req AwardRequest) (*models.PointTransaction, error) {
	var row db.PointTransaction

	err := sqlutil.Run(ctx, r.database, r.queries.WithTx, func(q *db.Queries) error {
		newBalance, err := q.AddToBalance(ctx, db.AddToBalanceParams{
			UserID: req.UserID,
			Delta:  int32(req.Delta),
		})
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		metadata := pqtype.NullRawMessage{}
		if len(req.Metadata) > 0 {
			metadata = pqtype.NullRawMessage{RawMessage: req.Metadata, Valid: true}
		}

		row, err = q.InsertTransaction(ctx, db.InsertTransactionParams{
			ID:              uuid.New(),
			UserID:          req.UserID,
			Delta:           int32(req.Delta),
			Type:            string(req.Type),
			Reason:          req.Reason,
			RelatedEntityID: req.RelatedEntityID,
			PreviousBalance: newBalance - int32(req.Delta),
			NewBalance:      newBalance,
			Metadata:        metadata,
			AwardedAt:       req.AwardedAt,
		})
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
				return ErrDuplicateAward
			}
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.dbTransactionToModel(row), nil
}

// GetTransactionByKey fetches the transaction recorded for an idempotency key.
func (r *Repository) GetTransactionByKey(ctx context.Context, userID uuid.UUID, txType models.TransactionType, relatedEntityID string) (*models.PointTransaction, error) {
	row, err := r.queries.GetTransactionByKey(ctx, db.GetTransactionByKeyParams{
		UserID:          userID,
		Type:            string(txType),
		RelatedEntityID: relatedEntityID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by key: %w", err)
	}
	return r.dbTransactionToModel(row), nil
}

// GetLatestTaskTransaction fetches the most recent task award or reversal for
// an entity, which decides whether a task may be (re-)credited.
func (r *Repository) GetLatestTaskTransaction(ctx context.Context, userID uuid.UUID, relatedEntityID string) (*models.PointTransaction, error) {
	row, err := r.queries.GetLatestTaskTransaction(ctx, db.GetLatestTaskTransactionParams{
		UserID:          userID,
		RelatedEntityID: relatedEntityID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get latest task transaction: %w", err)
	}
	return r.dbTransactionToModel(row), nil
}

// GetBalance returns the cumulative XP for a user, zero if none recorded.
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	xp, err := r.queries.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return int(xp), nil
}

// ListTransactions returns the newest-first audit trail for a user.
func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointTransaction, error) {
	rows, err := r.queries.ListTransactions(ctx, db.ListTransactionsParams{
		UserID: userID,
		Limit:  int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	items := make([]models.PointTransaction, len(rows))
	for i, row := range rows {
		items[i] = *r.dbTransactionToModel(row)
	}
	return items, nil
}

// dbTransactionToModel converts a database row to the domain model
func (r *Repository) dbTransactionToModel(row db.PointTransaction) *models.PointTransaction {
	return &models.PointTransaction{
		ID:              row.ID,
		UserID:          row.UserID,
		Delta:           int(row.Delta),
		Type:            models.TransactionType(row.Type),
		Reason:          row.Reason,
		RelatedEntityID: row.RelatedEntityID,
		PreviousBalance: int(row.PreviousBalance),
		NewBalance:      int(row.NewBalance),
		AwardedAt:       row.AwardedAt,
	}
}
