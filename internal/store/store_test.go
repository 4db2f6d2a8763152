package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func sampleRun() *schemas.RunReport {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &schemas.RunReport{
		RunID:      uuid.NewString(),
		Mode:       schemas.ModeSequential,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Results: []schemas.TestResult{
			{
				Library: "selenium", Target: "ip_check", URL: "https://example.com/ip",
				Status: schemas.StatusSuccess, CapturePath: "captures/a.png",
				CaptureMethod: "full_page", DetectedIP: "203.0.113.7",
				ProxyConfirmed: true, DeviceName: "iPhone 14", Enhanced: true,
				Elapsed: 31 * time.Second, StartedAt: started,
			},
		},
	}
}

func TestPersistRun(t *testing.T) {
	ctx := context.Background()

	runSQL := `
        INSERT INTO runs (id, mode, started_at, finished_at, result_count)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET
            finished_at = EXCLUDED.finished_at,
            result_count = EXCLUDED.result_count;
    `

	t.Run("should persist a run with its results", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		s, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		report := sampleRun()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta(runSQL)).
			WithArgs(report.RunID, "sequential", report.StartedAt, report.FinishedAt, 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"test_results"}, resultColumns).
			WillReturnResult(1)
		mockPool.ExpectCommit()

		require.NoError(t, s.PersistRun(ctx, report))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should handle transaction begin failure", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		s, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		beginErr := errors.New("cannot begin tx")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		err = s.PersistRun(ctx, sampleRun())
		require.Error(t, err)
		assert.ErrorIs(t, err, beginErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should rollback if copying results fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		s, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		report := sampleRun()
		copyErr := errors.New("copy from failed")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta(runSQL)).
			WithArgs(report.RunID, "sequential", report.StartedAt, report.FinishedAt, 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"test_results"}, resultColumns).
			WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err = s.PersistRun(ctx, report)
		require.Error(t, err)
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetResultsByRunID(t *testing.T) {
	ctx := context.Background()

	t.Run("should retrieve results in execution order", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		s, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		query := `
        SELECT library, target, url, status, capture_path, capture_method,
               detected_ip, proxy_confirmed, device_name, enhanced, elapsed_ms, error, started_at
        FROM test_results
        WHERE run_id = $1
        ORDER BY started_at ASC;
    `
		runID := uuid.NewString()
		now := time.Now()

		columns := []string{
			"library", "target", "url", "status", "capture_path", "capture_method",
			"detected_ip", "proxy_confirmed", "device_name", "enhanced", "elapsed_ms", "error", "started_at",
		}
		rows := pgxmock.NewRows(columns).
			AddRow("selenium", "ip_check", "https://example.com/ip", "success",
				"captures/a.png", "viewport", "203.0.113.7", true,
				"Pixel 6", false, int64(31000), "", now)

		sqlRegex := regexp.QuoteMeta(query)
		sqlRegex = regexp.MustCompile(`\s+`).ReplaceAllString(sqlRegex, `\s*`)
		mockPool.ExpectQuery(sqlRegex).
			WithArgs(runID).
			WillReturnRows(rows)

		results, err := s.GetResultsByRunID(ctx, runID)
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.Equal(t, "selenium", results[0].Library)
		assert.Equal(t, schemas.StatusSuccess, results[0].Status)
		assert.Equal(t, 31*time.Second, results[0].Elapsed)
		assert.True(t, results[0].ProxyConfirmed)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
