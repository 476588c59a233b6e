package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
	"github.com/dominic-g/wp-api-rate-limiter/domain/service"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
	"github.com/dominic-g/wp-api-rate-limiter/usecase"
)

const (
	identityCtxKey = "admission_identity"

	// geoJoinGrace bounds how long finalization waits for the in-flight geo
	// lookup before auditing with the unknown-country sentinel.
	geoJoinGrace = 2 * time.Second

	// geoLookupTimeout bounds the detached lookup itself. The lookup runs on
	// its own context so a cancelled request cannot abort the cache
	// write-through.
	geoLookupTimeout = 10 * time.Second
)

// AdmissionMiddleware is the request interceptor for the structured-response
// channel: blocked requests receive the JSON rejection value and handling is
// aborted through the framework. All per-request state lives on the request
// context, never on the middleware itself.
type AdmissionMiddleware struct {
	rules    service.AdmissionService
	enforcer *usecase.PolicyEnforcer
	geo      service.GeoResolver
	audit    service.AuditRecorder
	identity *IdentityExtractor
	logger   *logging.Logger
	now      func() time.Time
}

// NewAdmissionMiddleware creates the structured-shape interceptor.
func NewAdmissionMiddleware(
	rules service.AdmissionService,
	enforcer *usecase.PolicyEnforcer,
	geo service.GeoResolver,
	audit service.AuditRecorder,
	identity *IdentityExtractor,
	logger *logging.Logger,
) *AdmissionMiddleware {
	return &AdmissionMiddleware{
		rules:    rules,
		enforcer: enforcer,
		geo:      geo,
		audit:    audit,
		identity: identity,
		logger:   logger.WithComponent("admission_middleware"),
		now:      time.Now,
	}
}

// Handle returns the gin middleware.
func (m *AdmissionMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := m.now()
		ip := c.ClientIP()
		scope := c.FullPath()
		if scope == "" {
			scope = c.Request.URL.Path
		}

		identity := m.identity.FromAuthorizationHeader(c.GetHeader("Authorization"))
		if identity != nil {
			c.Set(identityCtxKey, identity)
		}

		record := entity.NewAuditRecord(ip, c.Request.Method, scope, identity, start)
		geoCh := m.startGeoLookup(ip)

		verdict := m.rules.Check(c.Request.Context(), ip, identity, scope)
		outcome := m.enforcer.Review(entity.ShapeStructured, verdict)

		if outcome.Rejected() {
			rejection := outcome.Rejection
			for key, values := range rejection.Headers {
				for _, value := range values {
					c.Header(key, value)
				}
			}
			c.JSON(rejection.Status, rejection.Body)
			c.Abort()

			record.Finalize(rejection.Status, m.now().Sub(start), int64(c.Writer.Size()), true)
			m.finishAudit(record, geoCh)
			return
		}

		c.Next()

		record.Finalize(c.Writer.Status(), m.now().Sub(start), int64(c.Writer.Size()), false)
		m.finishAudit(record, geoCh)
	}
}

// IdentityFromContext returns the identity the interceptor attached, if any.
func IdentityFromContext(c *gin.Context) *entity.Identity {
	value, ok := c.Get(identityCtxKey)
	if !ok {
		return nil
	}
	identity, _ := value.(*entity.Identity)
	return identity
}

// startGeoLookup kicks off the best-effort country lookup overlapping
// dispatch. Returns nil when geo enrichment is disabled.
func (m *AdmissionMiddleware) startGeoLookup(ip string) <-chan string {
	if m.geo == nil {
		return nil
	}

	ch := make(chan string, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), geoLookupTimeout)
		defer cancel()

		code := entity.UnknownCountryCode
		if record, err := m.geo.Resolve(ctx, ip, false); err == nil && record != nil {
			code = record.CountryCode
		}
		ch <- code
	}()
	return ch
}

// finishAudit joins the geo lookup with a bounded grace and enqueues the
// record. A slow lookup audits as unknown country rather than delaying
// anything further.
func (m *AdmissionMiddleware) finishAudit(record *entity.AuditRecord, geoCh <-chan string) {
	if geoCh != nil {
		select {
		case code := <-geoCh:
			record.CountryCode = code
		case <-time.After(geoJoinGrace):
		}
	}
	m.audit.Record(record)
}
