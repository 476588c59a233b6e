package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dominic-g/wp-api-rate-limiter/config"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/metrics"
)

// RouterDeps collects everything the HTTP surface needs.
type RouterDeps struct {
	Admission *AdmissionMiddleware
	Admin     *AdminHandler
	Identity  *IdentityExtractor
	Collector *metrics.Collector
	Logger    *logging.Logger

	// HealthPingers map dependency names to ping functions for /healthz.
	HealthPingers map[string]func() error

	// Protected are the business routes guarded by admission control. Keys
	// are "METHOD /path" in gin route syntax.
	Protected map[string]gin.HandlerFunc
}

// NewRouter builds the gin engine: admission-controlled business routes plus
// the operator surface (health, metrics, admin API).
func NewRouter(cfg *config.Config, deps RouterDeps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if len(cfg.Server.TrustedProxies) > 0 {
		_ = router.SetTrustedProxies(cfg.Server.TrustedProxies)
	}

	// Operator surface, outside admission control.
	router.GET("/healthz", deps.Admin.HealthCheck(deps.HealthPingers))
	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(deps.Collector.Handler()))
	}

	admin := router.Group("/admin")
	admin.Use(requireRole(deps.Identity, cfg.Auth.AdminRole))
	{
		admin.GET("/audit/recent", deps.Admin.RecentAudit)
		admin.GET("/limits", deps.Admin.GetLimits)
		admin.PUT("/limits/:class", deps.Admin.UpdateLimit)
		admin.POST("/geo/recheck/:ip", deps.Admin.RecheckGeo)
	}

	// Business routes behind the interceptor.
	protected := router.Group("/")
	protected.Use(deps.Admission.Handle())
	for route, handler := range deps.Protected {
		method, path, ok := splitRoute(route)
		if !ok {
			deps.Logger.Sugar().Warnf("skipping malformed route %q", route)
			continue
		}
		protected.Handle(method, path, handler)
	}

	return router
}

// requireRole gates the admin API on a JWT role claim.
func requireRole(extractor *IdentityExtractor, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := extractor.FromAuthorizationHeader(c.GetHeader("Authorization"))
		if identity == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "valid bearer token required",
			})
			return
		}
		if role != "" && identity.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error:   "forbidden",
				Message: "insufficient role",
			})
			return
		}
		c.Set(identityCtxKey, identity)
		c.Next()
	}
}

func splitRoute(route string) (method, path string, ok bool) {
	for i := 0; i < len(route); i++ {
		if route[i] == ' ' {
			if i == 0 || i == len(route)-1 {
				return "", "", false
			}
			return route[:i], route[i+1:], true
		}
	}
	return "", "", false
}
