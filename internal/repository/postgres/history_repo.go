package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver

	"github.com/mittens-dev/pipeline-panic/internal/history"
)

// HistoryRepo batch-writes deployment run records into the
// deployment_history table.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo opens a pooled connection. Reachability is the caller's
// problem: check Ping at startup.
func NewHistoryRepo(connString string) (*HistoryRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &HistoryRepo{db: db}, nil
}

// Ping verifies the connection.
func (r *HistoryRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the pool.
func (r *HistoryRepo) Close() error {
	return r.db.Close()
}

// WriteBatch inserts a batch of records in one statement.
func (r *HistoryRepo) WriteBatch(ctx context.Context, records []history.Record) error {
	if len(records) == 0 {
		return nil
	}

	const numFields = 8
	var placeholders strings.Builder
	vals := make([]any, 0, len(records)*numFields)

	for i, rec := range records {
		p := i * numFields
		fmt.Fprintf(&placeholders, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8)
		vals = append(vals,
			rec.ID, rec.ConnID, rec.ForceFailure, rec.FailureChance,
			rec.Success, rec.TotalSteps, rec.DurationMS, rec.Timestamp,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO deployment_history (id, conn_id, force_failure, failure_chance, success, total_steps, duration_ms, timestamp) VALUES %s",
		strings.TrimSuffix(placeholders.String(), ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	if err != nil {
		return fmt.Errorf("insert deployment history: %w", err)
	}
	return nil
}
