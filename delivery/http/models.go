package http

import (
	"time"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
)

// ErrorResponse is the admin API error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// LimitSettingsResponse describes one global limit configuration.
type LimitSettingsResponse struct {
	IdentityClass string `json:"identity_class"`
	Count         int64  `json:"count"`
	WindowSeconds int64  `json:"window_seconds"`
	Enabled       bool   `json:"enabled"`
}

// UpdateLimitRequest updates one global limit configuration.
type UpdateLimitRequest struct {
	Count         int64 `json:"count" binding:"required,gt=0"`
	WindowSeconds int64 `json:"window_seconds" binding:"required,gt=0"`
}

// AuditPageResponse is one page of the audit trail.
type AuditPageResponse struct {
	Records []AuditRecordResponse `json:"records"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// AuditRecordResponse is the wire form of one audit record.
type AuditRecordResponse struct {
	ID          string    `json:"id"`
	RequestTime time.Time `json:"request_time"`
	IP          string    `json:"ip"`
	CountryCode string    `json:"country_code"`
	Method      string    `json:"method"`
	Endpoint    string    `json:"endpoint"`
	UserID      string    `json:"user_id,omitempty"`
	UserRole    string    `json:"user_role,omitempty"`
	StatusCode  int       `json:"status_code"`
	LatencyMS   int64     `json:"latency_ms"`
	ByteCount   int64     `json:"byte_count"`
	IsBlocked   bool      `json:"is_blocked"`
}

func toAuditRecordResponse(record *entity.AuditRecord) AuditRecordResponse {
	return AuditRecordResponse{
		ID:          record.ID.String(),
		RequestTime: record.RequestTime,
		IP:          record.IP,
		CountryCode: record.CountryCode,
		Method:      record.Method,
		Endpoint:    record.Endpoint,
		UserID:      record.UserID,
		UserRole:    record.UserRole,
		StatusCode:  record.StatusCode,
		LatencyMS:   record.LatencyMS,
		ByteCount:   record.ByteCount,
		IsBlocked:   record.IsBlocked,
	}
}

func limitToResponse(class string, cfg entity.LimitConfig) LimitSettingsResponse {
	return LimitSettingsResponse{
		IdentityClass: class,
		Count:         cfg.Count,
		WindowSeconds: int64(cfg.Window / time.Second),
		Enabled:       cfg.Enabled,
	}
}
