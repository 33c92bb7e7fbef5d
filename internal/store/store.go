package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/0xjcr/chrome-osint-extension/internal/lookup"
)

// DBPool abstracts pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists lookup reports to PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// SaveReport inserts a run and its per-source results in one transaction.
func (s *Store) SaveReport(ctx context.Context, report *lookup.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit returns pgx.ErrTxClosed, which
		// is not worth logging.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx,
		`INSERT INTO lookup_runs (id, username, started_at) VALUES ($1, $2, $3)`,
		report.RunID, report.Username, report.StartedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, res := range report.Results {
		fields := res.Fields
		if fields == nil {
			fields = map[string]string{}
		}
		encoded, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to encode fields for %s: %w", res.Source, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO lookup_results (run_id, source, fields, error, elapsed_ms) VALUES ($1, $2, $3, $4, $5)`,
			report.RunID, res.Source, encoded, res.Error, res.Elapsed.Milliseconds(),
		); err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", res.Source, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug("report persisted",
		zap.String("run_id", report.RunID),
		zap.Int("results", len(report.Results)))
	return nil
}
