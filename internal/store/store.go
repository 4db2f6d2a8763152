// Package store persists run history to PostgreSQL. The sink is optional:
// when no database URL is configured the orchestration pipeline runs without
// it and results only reach the report writer.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides the PostgreSQL sink for run reports.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

var resultColumns = []string{
	"run_id", "library", "target", "url", "status",
	"capture_path", "capture_method", "detected_ip", "proxy_confirmed",
	"device_name", "enhanced", "elapsed_ms", "error", "started_at",
}

// PersistRun writes the run row and bulk-copies its results in one
// transaction.
func (s *Store) PersistRun(ctx context.Context, report *schemas.RunReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && rollbackErr != pgx.ErrTxClosed {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := s.persistRunRow(ctx, tx, report); err != nil {
		return err
	}
	if len(report.Results) > 0 {
		if err := s.persistResults(ctx, tx, report); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) persistRunRow(ctx context.Context, tx pgx.Tx, report *schemas.RunReport) error {
	sql := `
        INSERT INTO runs (id, mode, started_at, finished_at, result_count)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET
            finished_at = EXCLUDED.finished_at,
            result_count = EXCLUDED.result_count;
    `
	if _, err := tx.Exec(ctx, sql,
		report.RunID, string(report.Mode),
		report.StartedAt, report.FinishedAt, len(report.Results)); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}
	return nil
}

func (s *Store) persistResults(ctx context.Context, tx pgx.Tx, report *schemas.RunReport) error {
	rows := make([][]interface{}, len(report.Results))
	for i, r := range report.Results {
		rows[i] = []interface{}{
			report.RunID, r.Library, r.Target, r.URL, string(r.Status),
			r.CapturePath, r.CaptureMethod, r.DetectedIP, r.ProxyConfirmed,
			r.DeviceName, r.Enhanced, r.Elapsed.Milliseconds(), r.Error, r.StartedAt,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"test_results"},
		resultColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy results: %w", err)
	}
	if int(copyCount) != len(report.Results) {
		return fmt.Errorf("mismatch in copied result count: expected %d, got %d", len(report.Results), copyCount)
	}
	return nil
}

// GetResultsByRunID retrieves persisted results for a run in execution order.
func (s *Store) GetResultsByRunID(ctx context.Context, runID string) ([]schemas.TestResult, error) {
	query := `
        SELECT library, target, url, status, capture_path, capture_method,
               detected_ip, proxy_confirmed, device_name, enhanced, elapsed_ms, error, started_at
        FROM test_results
        WHERE run_id = $1
        ORDER BY started_at ASC;
    `
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []schemas.TestResult
	for rows.Next() {
		var r schemas.TestResult
		var status string
		var elapsedMS int64

		err := rows.Scan(
			&r.Library, &r.Target, &r.URL, &status,
			&r.CapturePath, &r.CaptureMethod,
			&r.DetectedIP, &r.ProxyConfirmed,
			&r.DeviceName, &r.Enhanced, &elapsedMS, &r.Error, &r.StartedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		r.Status = schemas.ResultStatus(status)
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return results, nil
}
