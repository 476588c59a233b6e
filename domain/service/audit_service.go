package service

import (
	"context"
	"time"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
)

// AuditRepository is the append-only persistent audit sink.
type AuditRepository interface {
	// Insert appends one finalized audit record.
	Insert(ctx context.Context, record *entity.AuditRecord) error

	// Recent returns records in descending request-time order.
	Recent(ctx context.Context, limit, offset int) ([]*entity.AuditRecord, error)

	// DeleteOlderThan removes records older than the cutoff and returns the
	// number deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRecorder accepts finalized audit records from the request hot path.
// Record must not block: persistence happens asynchronously and failures are
// logged, never surfaced to the request.
type AuditRecorder interface {
	Record(record *entity.AuditRecord)
}
