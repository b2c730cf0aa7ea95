package training

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const metricsSchema = `
CREATE TABLE IF NOT EXISTS training_metrics (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	samples_seen BIGINT NOT NULL,
	checkpoint_index BIGINT NOT NULL DEFAULT 0,
	round BIGINT NOT NULL DEFAULT 0,
	mean_error DOUBLE PRECISION NOT NULL DEFAULT 0,
	start_time TIMESTAMPTZ NOT NULL,
	duration DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS training_metrics_session_idx
	ON training_metrics (session_id, id);
`

// PostgresMetricsLogger is an implementation of MetricsLogger that persists
// records to a Postgres table, for sessions whose metrics must outlive the
// training host.
type PostgresMetricsLogger struct {
	db *sql.DB
}

// NewPostgresMetricsLogger wraps an existing database handle, creating the
// metrics table if needed. The caller retains ownership of the handle.
func NewPostgresMetricsLogger(ctx context.Context, db *sql.DB) (*PostgresMetricsLogger, error) {
	if _, err := db.ExecContext(ctx, metricsSchema); err != nil {
		return nil, fmt.Errorf("failed to create metrics schema: %w", err)
	}
	return &PostgresMetricsLogger{db: db}, nil
}

// OpenPostgresMetricsLogger opens a connection for the given DSN and wraps
// it. Close releases the connection.
func OpenPostgresMetricsLogger(ctx context.Context, dsn string) (*PostgresMetricsLogger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to metrics database: %w", err)
	}
	logger, err := NewPostgresMetricsLogger(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return logger, nil
}

func (l *PostgresMetricsLogger) LogRecord(ctx context.Context, record *MetricsRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO training_metrics
			(session_id, kind, samples_seen, checkpoint_index, round, mean_error, start_time, duration)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.SessionID,
		record.Kind,
		int64(record.SamplesSeen),
		int64(record.CheckpointIndex),
		int64(record.Round),
		record.MeanError,
		record.StartTime,
		record.Duration,
	)
	if err != nil {
		return fmt.Errorf("failed to insert metrics record: %w", err)
	}
	return nil
}

func (l *PostgresMetricsLogger) GetHistory(ctx context.Context, sessionID string) ([]*MetricsRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT session_id, kind, samples_seen, checkpoint_index, round, mean_error, start_time, duration
		FROM training_metrics
		WHERE session_id = $1
		ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics records: %w", err)
	}
	defer rows.Close()

	var records []*MetricsRecord
	for rows.Next() {
		var (
			record                      MetricsRecord
			samplesSeen, cpIndex, cvIdx int64
		)
		if err := rows.Scan(
			&record.SessionID,
			&record.Kind,
			&samplesSeen,
			&cpIndex,
			&cvIdx,
			&record.MeanError,
			&record.StartTime,
			&record.Duration,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metrics record: %w", err)
		}
		record.SamplesSeen = uint64(samplesSeen)
		record.CheckpointIndex = uint64(cpIndex)
		record.Round = uint64(cvIdx)
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metrics records: %w", err)
	}
	return records, nil
}

// Close releases the underlying connection. Only call it when the logger
// was created with OpenPostgresMetricsLogger.
func (l *PostgresMetricsLogger) Close() error {
	return l.db.Close()
}
