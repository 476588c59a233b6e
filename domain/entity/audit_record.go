package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord is one append-only entry in the request audit trail. It is
// created when a request enters the interceptor and finalized once the
// response status and latency are known (immediately, for blocked requests).
type AuditRecord struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	RequestTime time.Time         `json:"request_time" db:"request_time"`
	IP          string            `json:"ip" db:"ip"`
	CountryCode string            `json:"country_code" db:"country_code"`
	Method      string            `json:"method" db:"method"`
	Endpoint    string            `json:"endpoint" db:"endpoint"`
	UserID      string            `json:"user_id,omitempty" db:"user_id"`
	UserRole    string            `json:"user_role,omitempty" db:"user_role"`
	StatusCode  int               `json:"status_code" db:"status_code"`
	LatencyMS   int64             `json:"latency_ms" db:"latency_ms"`
	ByteCount   int64             `json:"byte_count" db:"byte_count"`
	IsBlocked   bool              `json:"is_blocked" db:"is_blocked"`
	Metadata    map[string]string `json:"metadata,omitempty" db:"-"`
}

// NewAuditRecord starts an audit record for an inbound request. Status,
// latency, and byte count are filled in at finalization.
func NewAuditRecord(ip, method, endpoint string, identity *Identity, now time.Time) *AuditRecord {
	rec := &AuditRecord{
		ID:          uuid.New(),
		RequestTime: now,
		IP:          ip,
		CountryCode: UnknownCountryCode,
		Method:      method,
		Endpoint:    endpoint,
	}
	if identity != nil {
		rec.UserID = identity.UserID
		rec.UserRole = identity.Role
	}
	return rec
}

// Finalize stamps the response outcome onto the record.
func (r *AuditRecord) Finalize(status int, latency time.Duration, bytes int64, blocked bool) {
	r.StatusCode = status
	r.LatencyMS = latency.Milliseconds()
	r.ByteCount = bytes
	r.IsBlocked = blocked
}
