package entity

import (
	"net/http"
	"time"
)

// RejectionShape selects the wire format of a rate limit rejection.
type RejectionShape string

const (
	// ShapeStructured is for channels that serialize a structured response
	// value (the JSON API surface).
	ShapeStructured RejectionShape = "structured"

	// ShapeTerminal is for channels with no structured-response convention:
	// the adapter writes the rejection to the transport and halts further
	// handling itself.
	ShapeTerminal RejectionShape = "terminal"
)

// Rejection is a fully built rate limit rejection: status, headers, and an
// already-shaped body. It is a value; the delivery adapter decides how to
// write it and how to terminate the request.
type Rejection struct {
	Status  int
	Headers http.Header
	Body    interface{}
}

// StructuredRejectionBody is the body for ShapeStructured channels.
type StructuredRejectionBody struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Data    StructuredRejectionData `json:"data"`
}

// StructuredRejectionData carries the machine-readable rejection details.
type StructuredRejectionData struct {
	Status     int   `json:"status"`
	RetryAfter int64 `json:"retry_after"`
}

// TerminalRejectionBody is the body for ShapeTerminal channels.
type TerminalRejectionBody struct {
	Success bool                  `json:"success"`
	Data    TerminalRejectionData `json:"data"`
}

// TerminalRejectionData carries the rejection details for terminal channels.
type TerminalRejectionData struct {
	Message    string `json:"message"`
	RetryAfter int64  `json:"retry_after"`
}

// Outcome is the control-flow result of an admission check. The core never
// terminates request handling itself; adapters map a rejected outcome onto
// their own termination primitive (abort, early return).
type Outcome struct {
	Verdict   Verdict
	Rejection *Rejection
}

// Rejected reports whether the request must not be dispatched.
func (o Outcome) Rejected() bool {
	return o.Rejection != nil
}

// ResetAt returns the epoch second at which the current window rolls over.
func ResetAt(now time.Time, retryAfter time.Duration) int64 {
	return now.Add(retryAfter).Unix()
}
