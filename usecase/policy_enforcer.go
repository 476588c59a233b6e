package usecase

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
)

// RateLimitMessage is the operator-facing rejection text.
const RateLimitMessage = "Too many requests. Please slow down and try again later."

// PolicyEnforcer translates a deny verdict into a protocol-appropriate
// rejection value. It produces values only; delivery adapters decide how to
// write them and how to stop further handling.
type PolicyEnforcer struct {
	now func() time.Time
}

// NewPolicyEnforcer creates the rejection builder.
func NewPolicyEnforcer() *PolicyEnforcer {
	return &PolicyEnforcer{now: time.Now}
}

// Reject builds the rejection for a blocked verdict in the given shape.
func (p *PolicyEnforcer) Reject(shape entity.RejectionShape, verdict entity.Verdict) *entity.Rejection {
	retryAfter := int64(verdict.RetryAfter / time.Second)
	if retryAfter < 0 {
		retryAfter = 0
	}

	headers := http.Header{}
	headers.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	headers.Set("X-RateLimit-Limit", strconv.FormatInt(verdict.Limit.Count, 10))
	headers.Set("X-RateLimit-Remaining", "0")
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(entity.ResetAt(p.now(), verdict.RetryAfter), 10))

	rejection := &entity.Rejection{
		Status:  http.StatusTooManyRequests,
		Headers: headers,
	}

	switch shape {
	case entity.ShapeTerminal:
		rejection.Body = entity.TerminalRejectionBody{
			Success: false,
			Data: entity.TerminalRejectionData{
				Message:    RateLimitMessage,
				RetryAfter: retryAfter,
			},
		}
	default:
		rejection.Body = entity.StructuredRejectionBody{
			Code:    "rate_limit_exceeded",
			Message: RateLimitMessage,
			Data: entity.StructuredRejectionData{
				Status:     http.StatusTooManyRequests,
				RetryAfter: retryAfter,
			},
		}
	}

	return rejection
}

// Review maps a verdict to the control-flow outcome handed to adapters.
func (p *PolicyEnforcer) Review(shape entity.RejectionShape, verdict entity.Verdict) entity.Outcome {
	outcome := entity.Outcome{Verdict: verdict}
	if verdict.Blocked {
		outcome.Rejection = p.Reject(shape, verdict)
	}
	return outcome
}
