package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
	"github.com/dominic-g/wp-api-rate-limiter/domain/service"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
	"github.com/dominic-g/wp-api-rate-limiter/usecase"
)

// TerminalMiddleware is the request interceptor for channels with no
// structured-response convention: plain net/http handlers that would
// otherwise run their business logic unconditionally. A blocked request is
// written straight to the transport and the chain stops there: next is
// simply never called, which is this adapter's termination primitive.
type TerminalMiddleware struct {
	rules    service.AdmissionService
	enforcer *usecase.PolicyEnforcer
	geo      service.GeoResolver
	audit    service.AuditRecorder
	identity *IdentityExtractor
	logger   *logging.Logger
	now      func() time.Time
}

// NewTerminalMiddleware creates the terminal-shape interceptor.
func NewTerminalMiddleware(
	rules service.AdmissionService,
	enforcer *usecase.PolicyEnforcer,
	geo service.GeoResolver,
	audit service.AuditRecorder,
	identity *IdentityExtractor,
	logger *logging.Logger,
) *TerminalMiddleware {
	return &TerminalMiddleware{
		rules:    rules,
		enforcer: enforcer,
		geo:      geo,
		audit:    audit,
		identity: identity,
		logger:   logger.WithComponent("terminal_middleware"),
		now:      time.Now,
	}
}

// Wrap protects an http.Handler with admission control.
func (m *TerminalMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := m.now()
		ip := clientIP(r)
		identity := m.identity.FromAuthorizationHeader(r.Header.Get("Authorization"))

		record := entity.NewAuditRecord(ip, r.Method, r.URL.Path, identity, start)
		geoCh := m.startGeoLookup(ip)

		verdict := m.rules.Check(r.Context(), ip, identity, r.URL.Path)
		outcome := m.enforcer.Review(entity.ShapeTerminal, verdict)

		if outcome.Rejected() {
			written := m.writeRejection(w, outcome.Rejection)

			record.Finalize(outcome.Rejection.Status, m.now().Sub(start), written, true)
			m.finishAudit(record, geoCh)
			return
		}

		// The finalizer runs even when the handler panics, so accounting
		// still reflects what was admitted.
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			record.Finalize(recorder.status, m.now().Sub(start), recorder.bytes, false)
			m.finishAudit(record, geoCh)
		}()

		next.ServeHTTP(recorder, r)
	})
}

// writeRejection maps the rejection value onto the raw transport.
func (m *TerminalMiddleware) writeRejection(w http.ResponseWriter, rejection *entity.Rejection) int64 {
	for key, values := range rejection.Headers {
		for _, value := range values {
			w.Header().Set(key, value)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rejection.Status)

	body, err := json.Marshal(rejection.Body)
	if err != nil {
		m.logger.Error("failed to encode rejection body", zap.Error(err))
		return 0
	}
	n, _ := w.Write(body)
	return int64(n)
}

func (m *TerminalMiddleware) startGeoLookup(ip string) <-chan string {
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

func (m *TerminalMiddleware) finishAudit(record *entity.AuditRecord, geoCh <-chan string) {
	if geoCh != nil {
		select {
		case code := <-geoCh:
			record.CountryCode = code
		case <-time.After(geoJoinGrace):
		}
	}
	m.audit.Record(record)
}

// statusRecorder captures the status code and byte count the wrapped handler
// produced.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(data []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	n, err := r.ResponseWriter.Write(data)
	r.bytes += int64(n)
	return n, err
}
