package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore implements Store on top of the audit_log table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, record Record) error {
	query := `
		INSERT INTO audit_log (
			id, request_id, principal_id, action, resource,
			details, client_ip, user_agent, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	recordID := record.ID
	if recordID == "" {
		recordID = uuid.NewString()
	}
	details, err := json.Marshal(record.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, query,
		recordID,
		record.RequestID,
		record.PrincipalID,
		record.Action,
		record.Resource,
		details,
		record.ClientIP,
		record.UserAgent,
		record.Status,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByPrincipal(ctx context.Context, principalID string) ([]Record, error) {
	query := `
		SELECT id, request_id, principal_id, action, resource,
		       details, client_ip, user_agent, status, created_at
		FROM audit_log
		WHERE principal_id = $1
		ORDER BY created_at
	`
	return s.list(ctx, query, principalID)
}

func (s *PostgresStore) ListByRequestID(ctx context.Context, requestID string) ([]Record, error) {
	query := `
		SELECT id, request_id, principal_id, action, resource,
		       details, client_ip, user_agent, status, created_at
		FROM audit_log
		WHERE request_id = $1
		ORDER BY created_at
	`
	return s.list(ctx, query, requestID)
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r         Record
			details   []byte
			createdAt time.Time
		)
		if err := rows.Scan(
			&r.ID, &r.RequestID, &r.PrincipalID, &r.Action, &r.Resource,
			&details, &r.ClientIP, &r.UserAgent, &r.Status, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &r.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		r.Timestamp = createdAt
		records = append(records, r)
	}
	return records, rows.Err()
}
