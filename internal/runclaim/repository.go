package runclaim

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is a Ledger backed by the run_claims table, shared by every
// instance of the service.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Claim inserts the run and reports whether this call created the row.
func (r *Repository) Claim(ctx context.Context, runID int64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO run_claims (run_id) VALUES ($1)
		 ON CONFLICT (run_id) DO NOTHING`,
		runID,
	)
	if err != nil {
		return false, fmt.Errorf("claim run: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Complete stores the conclusion once; later observations of the same run are no-ops.
func (r *Repository) Complete(ctx context.Context, runID int64, conclusion string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE run_claims SET conclusion = $2, completed_at = NOW()
		 WHERE run_id = $1 AND completed_at IS NULL`,
		runID, conclusion,
	)
	if err != nil {
		return fmt.Errorf("complete run claim: %w", err)
	}
	return nil
}

var (
	_ Ledger = (*Repository)(nil)
	_ Ledger = (*Memory)(nil)
)
