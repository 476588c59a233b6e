package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominic-g/wp-api-rate-limiter/config"
	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
	"github.com/dominic-g/wp-api-rate-limiter/infrastructure/database/postgres"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
	"github.com/dominic-g/wp-api-rate-limiter/usecase"
)

// memoryAuditRepo backs the audit service in handler tests.
type memoryAuditRepo struct {
	records []*entity.AuditRecord
	err     error
}

func (r *memoryAuditRepo) Insert(_ context.Context, record *entity.AuditRecord) error {
	r.records = append(r.records, record)
	return nil
}

func (r *memoryAuditRepo) Recent(_ context.Context, limit, offset int) ([]*entity.AuditRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	if offset >= len(r.records) {
		return nil, nil
	}
	end := offset + limit
	if end > len(r.records) {
		end = len(r.records)
	}
	return r.records[offset:end], nil
}

func (r *memoryAuditRepo) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// memorySettingsRepo backs the limit provider in handler tests.
type memorySettingsRepo struct {
	values map[string]string
}

func (r *memorySettingsRepo) Get(_ context.Context, key string) (string, error) {
	if value, ok := r.values[key]; ok {
		return value, nil
	}
	return "", postgres.ErrSettingNotFound
}

func (r *memorySettingsRepo) Set(_ context.Context, key, value string) error {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	r.values[key] = value
	return nil
}

// forceGeo records the force flag it was resolved with.
type forceGeo struct {
	record    *entity.GeoRecord
	lastForce bool
}

func (g *forceGeo) Resolve(_ context.Context, ip string, force bool) (*entity.GeoRecord, error) {
	g.lastForce = force
	if g.record == nil {
		return nil, nil
	}
	record := *g.record
	record.IP = ip
	return &record, nil
}

func newTestAdminHandler(auditRepo *memoryAuditRepo, geo *forceGeo) *AdminHandler {
	logger := logging.NewNopLogger()
	audit := usecase.NewAuditService(auditRepo, config.AuditConfig{
		QueueSize:    8,
		WriteTimeout: time.Second,
	}, logger, nil)
	limits := usecase.NewSettingsLimitProvider(&memorySettingsRepo{}, config.RateLimitConfig{
		UnauthenticatedCount:  100,
		UnauthenticatedWindow: 60 * time.Second,
		AuthenticatedCount:    500,
		AuthenticatedWindow:   60 * time.Second,
		SettingsTTL:           time.Minute,
	}, logger, nil)

	if geo == nil {
		return NewAdminHandler(audit, limits, nil, logger)
	}
	return NewAdminHandler(audit, limits, geo, logger)
}

func adminContext(method, target string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	c.Request = httptest.NewRequest(method, target, reader)
	return c, w
}

func TestAdminHandler_RecentAuditReturnsPage(t *testing.T) {
	repo := &memoryAuditRepo{}
	for _, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		record := entity.NewAuditRecord(ip, "GET", "/wp-json/wp/v2/posts", nil, time.Now().UTC())
		record.Finalize(200, 5, 100, false)
		repo.records = append(repo.records, record)
	}
	handler := newTestAdminHandler(repo, nil)

	c, w := adminContext(http.MethodGet, "/admin/audit/recent?limit=2&offset=1", "")
	handler.RecentAudit(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var page AuditPageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Records, 2)
	assert.Equal(t, "203.0.113.2", page.Records[0].IP)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 1, page.Offset)
}

func TestAdminHandler_RecentAuditClampsBadParams(t *testing.T) {
	handler := newTestAdminHandler(&memoryAuditRepo{}, nil)

	c, w := adminContext(http.MethodGet, "/admin/audit/recent?limit=-5&offset=-1", "")
	handler.RecentAudit(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var page AuditPageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 100, page.Limit)
	assert.Equal(t, 0, page.Offset)
}

func TestAdminHandler_RecentAuditRepositoryError(t *testing.T) {
	handler := newTestAdminHandler(&memoryAuditRepo{err: errors.New("connection refused")}, nil)

	c, w := adminContext(http.MethodGet, "/admin/audit/recent", "")
	handler.RecentAudit(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAdminHandler_GetLimitsReturnsBothClasses(t *testing.T) {
	handler := newTestAdminHandler(&memoryAuditRepo{}, nil)

	c, w := adminContext(http.MethodGet, "/admin/limits", "")
	handler.GetLimits(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var limits []LimitSettingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &limits))
	require.Len(t, limits, 2)
	assert.Equal(t, "unauthenticated", limits[0].IdentityClass)
	assert.Equal(t, int64(100), limits[0].Count)
	assert.Equal(t, "authenticated", limits[1].IdentityClass)
	assert.Equal(t, int64(500), limits[1].Count)
}

func TestAdminHandler_UpdateLimit(t *testing.T) {
	handler := newTestAdminHandler(&memoryAuditRepo{}, nil)

	c, w := adminContext(http.MethodPut, "/admin/limits/unauthenticated", `{"count":25,"window_seconds":30}`)
	c.Params = gin.Params{{Key: "class", Value: "unauthenticated"}}
	c.Request.Header.Set("Content-Type", "application/json")
	handler.UpdateLimit(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp LimitSettingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(25), resp.Count)
	assert.Equal(t, int64(30), resp.WindowSeconds)
}

func TestAdminHandler_UpdateLimitUnknownClass(t *testing.T) {
	handler := newTestAdminHandler(&memoryAuditRepo{}, nil)

	c, w := adminContext(http.MethodPut, "/admin/limits/robots", `{"count":25,"window_seconds":30}`)
	c.Params = gin.Params{{Key: "class", Value: "robots"}}
	handler.UpdateLimit(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminHandler_UpdateLimitRejectsInvalidBody(t *testing.T) {
	handler := newTestAdminHandler(&memoryAuditRepo{}, nil)

	c, w := adminContext(http.MethodPut, "/admin/limits/authenticated", `{"count":0,"window_seconds":30}`)
	c.Params = gin.Params{{Key: "class", Value: "authenticated"}}
	c.Request.Header.Set("Content-Type", "application/json")
	handler.UpdateLimit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_RecheckGeoForcesResolution(t *testing.T) {
	geo := &forceGeo{record: &entity.GeoRecord{CountryCode: "KE", CheckedAt: time.Now().UTC()}}
	handler := newTestAdminHandler(&memoryAuditRepo{}, geo)

	c, w := adminContext(http.MethodPost, "/admin/geo/recheck/203.0.113.5", "")
	c.Params = gin.Params{{Key: "ip", Value: "203.0.113.5"}}
	handler.RecheckGeo(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, geo.lastForce, "recheck bypasses the caches")

	var record entity.GeoRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "KE", record.CountryCode)
	assert.Equal(t, "203.0.113.5", record.IP)
}

func TestAdminHandler_RecheckGeoUnresolvedReturnsSentinel(t *testing.T) {
	handler := newTestAdminHandler(&memoryAuditRepo{}, &forceGeo{})

	c, w := adminContext(http.MethodPost, "/admin/geo/recheck/203.0.113.5", "")
	c.Params = gin.Params{{Key: "ip", Value: "203.0.113.5"}}
	handler.RecheckGeo(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var record entity.GeoRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, entity.UnknownCountryCode, record.CountryCode)
}

func TestAdminHandler_RecheckGeoDisabled(t *testing.T) {
	handler := newTestAdminHandler(&memoryAuditRepo{}, nil)

	c, w := adminContext(http.MethodPost, "/admin/geo/recheck/203.0.113.5", "")
	c.Params = gin.Params{{Key: "ip", Value: "203.0.113.5"}}
	handler.RecheckGeo(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminHandler_HealthCheck(t *testing.T) {
	handler := newTestAdminHandler(&memoryAuditRepo{}, nil)

	t.Run("all healthy", func(t *testing.T) {
		c, w := adminContext(http.MethodGet, "/healthz", "")
		handler.HealthCheck(map[string]func() error{
			"postgres": func() error { return nil },
			"redis":    func() error { return nil },
		})(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	})

	t.Run("dependency down", func(t *testing.T) {
		c, w := adminContext(http.MethodGet, "/healthz", "")
		handler.HealthCheck(map[string]func() error{
			"postgres": func() error { return errors.New("no route to host") },
		})(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	})
}

func TestRequireRole(t *testing.T) {
	extractor := NewIdentityExtractor(config.AuthConfig{JWTSecret: testJWTSecret})

	router := gin.New()
	router.GET("/admin/ping", requireRole(extractor, "admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	t.Run("no token", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/ping", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "42", "subscriber"))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin role", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "1", "admin"))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestSplitRoute(t *testing.T) {
	method, path, ok := splitRoute("GET /api/status")
	assert.True(t, ok)
	assert.Equal(t, "GET", method)
	assert.Equal(t, "/api/status", path)

	_, _, ok = splitRoute("GET")
	assert.False(t, ok)

	_, _, ok = splitRoute(" /api/status")
	assert.False(t, ok)
}
