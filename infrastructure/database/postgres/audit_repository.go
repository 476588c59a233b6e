package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
)

// AuditRepository implements the audit repository interface for PostgreSQL
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one finalized audit record.
func (r *AuditRepository) Insert(ctx context.Context, record *entity.AuditRecord) error {
	var metadataJSON []byte
	if len(record.Metadata) > 0 {
		var err error
		metadataJSON, err = json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO request_audit_log (
			id, request_time, ip, country_code, method, endpoint,
			user_id, user_role, status_code, latency_ms, byte_count,
			is_blocked, metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.RequestTime, record.IP, record.CountryCode,
		record.Method, record.Endpoint, record.UserID, record.UserRole,
		record.StatusCode, record.LatencyMS, record.ByteCount,
		record.IsBlocked, nullableJSON(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}

// Recent returns audit records in descending request-time order.
func (r *AuditRepository) Recent(ctx context.Context, limit, offset int) ([]*entity.AuditRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, request_time, ip, country_code, method, endpoint,
		       user_id, user_role, status_code, latency_ms, byte_count,
		       is_blocked, metadata
		FROM request_audit_log
		ORDER BY request_time DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryxContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*entity.AuditRecord
	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// DeleteOlderThan removes audit records older than the cutoff.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM request_audit_log WHERE request_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit records: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return deleted, nil
}

func scanAuditRecord(rows *sqlx.Rows) (*entity.AuditRecord, error) {
	var (
		record       entity.AuditRecord
		id           string
		metadataJSON sql.NullString
	)

	err := rows.Scan(
		&id, &record.RequestTime, &record.IP, &record.CountryCode,
		&record.Method, &record.Endpoint, &record.UserID, &record.UserRole,
		&record.StatusCode, &record.LatencyMS, &record.ByteCount,
		&record.IsBlocked, &metadataJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit record: %w", err)
	}

	record.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid audit record id: %w", err)
	}

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &record.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &record, nil
}

func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return data
}
