package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore implements Store on top of the idempotency_records table.
// The key is the primary key; replacing an expired record rides on an upsert
// guarded by the stored expiry, so duplicate detection stays atomic in the
// database rather than in application code.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, record Record) error {
	query := `
		INSERT INTO idempotency_records (
			key, payload_hash, status, status_code, response, created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO UPDATE SET
			payload_hash = EXCLUDED.payload_hash,
			status       = EXCLUDED.status,
			status_code  = EXCLUDED.status_code,
			response     = EXCLUDED.response,
			created_at   = EXCLUDED.created_at,
			expires_at   = EXCLUDED.expires_at
		WHERE idempotency_records.expires_at <= EXCLUDED.created_at
	`

	res, err := s.db.ExecContext(ctx, query,
		record.Key,
		record.PayloadHash,
		string(record.Status),
		record.StatusCode,
		[]byte(record.Response),
		record.CreatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	if affected == 0 {
		return ErrDuplicateKey
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Record, error) {
	query := `
		SELECT key, payload_hash, status, status_code, response, created_at, expires_at
		FROM idempotency_records
		WHERE key = $1 AND expires_at > NOW()
	`

	var (
		record   Record
		status   string
		response []byte
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&record.Key,
		&record.PayloadHash,
		&status,
		&record.StatusCode,
		&response,
		&record.CreatedAt,
		&record.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	record.Status = Status(status)
	record.Response = response
	return &record, nil
}

func (s *PostgresStore) Update(ctx context.Context, record Record) error {
	query := `
		UPDATE idempotency_records
		SET status = $2, status_code = $3, response = $4
		WHERE key = $1
	`

	res, err := s.db.ExecContext(ctx, query,
		record.Key,
		string(record.Status),
		record.StatusCode,
		[]byte(record.Response),
	)
	if err != nil {
		return fmt.Errorf("update idempotency record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update idempotency record: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_records WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency records: %w", err)
	}
	return int(affected), nil
}
