package healthstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/health-insight/internal/domain/healthdata"
)

// PostgresStore persists health_samples in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs the adapter.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Available reports whether the user has synced anything.
func (s *PostgresStore) Available(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM health_samples WHERE user_id = $1)`, userID).Scan(&exists)
	return exists, err
}

// QuerySamples returns samples overlapping [start, end) ordered by start.
func (s *PostgresStore) QuerySamples(ctx context.Context, userID int64, identifier string, start, end time.Time) ([]healthdata.Sample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT start_at, end_at, value, source_tag, category
		FROM health_samples
		WHERE user_id = $1 AND identifier = $2 AND end_at >= $3 AND start_at < $4
		ORDER BY start_at
	`, userID, identifier, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make([]healthdata.Sample, 0)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// MostRecent returns the latest sample starting before the given instant.
func (s *PostgresStore) MostRecent(ctx context.Context, userID int64, identifier string, before time.Time) (healthdata.Sample, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT start_at, end_at, value, source_tag, category
		FROM health_samples
		WHERE user_id = $1 AND identifier = $2 AND start_at < $3
		ORDER BY start_at DESC
		LIMIT 1
	`, userID, identifier, before)
	sample, err := scanSample(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return healthdata.Sample{}, false, nil
	}
	if err != nil {
		return healthdata.Sample{}, false, err
	}
	return sample, true, nil
}

// Append copies samples into a staging table and merges them; a resent
// sample replaces the stored value.
func (s *PostgresStore) Append(ctx context.Context, userID int64, identifier string, samples []healthdata.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ingest: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		CREATE TEMP TABLE ingest_samples (
			start_at timestamptz NOT NULL,
			end_at timestamptz NOT NULL,
			value double precision NOT NULL,
			source_tag text NOT NULL,
			category text NOT NULL
		) ON COMMIT DROP
	`); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	rows := make([][]any, 0, len(samples))
	for _, sample := range samples {
		rows = append(rows, []any{sample.Start, sample.End, sample.Value, sample.SourceTag, sample.Category})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"ingest_samples"},
		[]string{"start_at", "end_at", "value", "source_tag", "category"},
		pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy samples: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO health_samples (user_id, identifier, start_at, end_at, value, source_tag, category)
		SELECT DISTINCT ON (start_at, end_at, source_tag, category)
			$1, $2, start_at, end_at, value, source_tag, category
		FROM ingest_samples
		ORDER BY start_at, end_at, source_tag, category
		ON CONFLICT (user_id, identifier, start_at, end_at, source_tag, category)
		DO UPDATE SET value = EXCLUDED.value
	`, userID, identifier); err != nil {
		return fmt.Errorf("merge samples: %w", err)
	}
	return tx.Commit(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (healthdata.Sample, error) {
	var sample healthdata.Sample
	if err := row.Scan(&sample.Start, &sample.End, &sample.Value, &sample.SourceTag, &sample.Category); err != nil {
		return healthdata.Sample{}, err
	}
	return sample, nil
}

var _ healthdata.Store = (*PostgresStore)(nil)
