package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
	"github.com/dominic-g/wp-api-rate-limiter/domain/service"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
	"github.com/dominic-g/wp-api-rate-limiter/usecase"
)

// AdminHandler serves the operator API: audit trail reads, limit settings,
// and forced geo re-resolution.
type AdminHandler struct {
	audit  *usecase.AuditService
	limits *usecase.SettingsLimitProvider
	geo    service.GeoResolver
	logger *logging.Logger
}

// NewAdminHandler creates the admin API handler.
func NewAdminHandler(audit *usecase.AuditService, limits *usecase.SettingsLimitProvider, geo service.GeoResolver, logger *logging.Logger) *AdminHandler {
	return &AdminHandler{
		audit:  audit,
		limits: limits,
		geo:    geo,
		logger: logger.WithComponent("admin_handler"),
	}
}

// RecentAudit returns a page of the audit trail, newest first.
func (h *AdminHandler) RecentAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	records, err := h.audit.Recent(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to read audit trail", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "failed to read audit trail",
		})
		return
	}

	page := AuditPageResponse{
		Records: make([]AuditRecordResponse, 0, len(records)),
		Limit:   limit,
		Offset:  offset,
	}
	for _, record := range records {
		page.Records = append(page.Records, toAuditRecordResponse(record))
	}

	c.JSON(http.StatusOK, page)
}

// GetLimits returns both global limit configurations.
func (h *AdminHandler) GetLimits(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, []LimitSettingsResponse{
		limitToResponse("unauthenticated", h.limits.GlobalLimit(ctx, false)),
		limitToResponse("authenticated", h.limits.GlobalLimit(ctx, true)),
	})
}

// UpdateLimit updates one global limit configuration. The path parameter is
// the identity class: "unauthenticated" or "authenticated".
func (h *AdminHandler) UpdateLimit(c *gin.Context) {
	class := c.Param("class")
	if class != "unauthenticated" && class != "authenticated" {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "unknown_identity_class",
			Message: "identity class must be 'unauthenticated' or 'authenticated'",
		})
		return
	}

	var req UpdateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	cfg, err := h.limits.UpdateGlobalLimit(c.Request.Context(), class == "authenticated", req.Count, req.WindowSeconds)
	if err != nil {
		h.logger.Error("failed to update limit setting",
			zap.String("class", class),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "failed to update limit setting",
		})
		return
	}

	c.JSON(http.StatusOK, limitToResponse(class, cfg))
}

// RecheckGeo forces a fresh geo resolution for an IP, bypassing both caches.
func (h *AdminHandler) RecheckGeo(c *gin.Context) {
	ip := c.Param("ip")

	if h.geo == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "geo_disabled",
			Message: "geo enrichment is disabled",
		})
		return
	}

	record, err := h.geo.Resolve(c.Request.Context(), ip, true)
	if err != nil {
		h.logger.Error("forced geo resolution failed",
			zap.String("ip", ip),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "geo resolution failed",
		})
		return
	}
	if record == nil {
		c.JSON(http.StatusOK, entity.SentinelRecord(ip, time.Now().UTC()))
		return
	}

	c.JSON(http.StatusOK, record)
}

// HealthCheck reports liveness and dependency health.
func (h *AdminHandler) HealthCheck(pingers map[string]func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		deps := make(map[string]string, len(pingers))

		for name, ping := range pingers {
			if err := ping(); err != nil {
				deps[name] = "unhealthy: " + err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "healthy"
		}

		c.JSON(status, gin.H{
			"status":       httpStatusWord(status),
			"dependencies": deps,
		})
	}
}

func httpStatusWord(status int) string {
	if status == http.StatusOK {
		return "healthy"
	}
	return "degraded"
}
