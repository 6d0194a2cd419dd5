package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   code,
		Message: message,
		TraceID: traceIDStr,
	}
}

// SessionPayload describes one session as returned by the API.
type SessionPayload struct {
	Verifier  string     `json:"verifier"`
	ExpiresAt time.Time  `json:"expires_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
}

func newSessionPayload(session domain.Session) SessionPayload {
	return SessionPayload{
		Verifier:  session.Verifier,
		ExpiresAt: session.Expiration,
		StartedAt: session.Started,
		IPAddress: session.IPAddress,
		UserAgent: session.UserAgent,
	}
}

// NonceSet carries the action tokens a client needs for revocation calls.
type NonceSet struct {
	DestroySession  string `json:"destroy_session"`
	DestroySessions string `json:"destroy_sessions"`
}

// SessionListResponse partitions the target user's sessions around the
// caller's own login and includes fresh action tokens.
type SessionListResponse struct {
	Current *SessionPayload  `json:"current,omitempty"`
	Others  []SessionPayload `json:"others"`
	Total   int              `json:"total"`
	Nonces  NonceSet         `json:"nonces"`
}

// SessionPurgeResponse reports the outcome of a bulk revocation.
type SessionPurgeResponse struct {
	Destroyed int `json:"destroyed"`
}

// SessionAttachRequest records a fresh login. Either the raw token or its
// verifier must be supplied; the raw token is hashed at the edge and never
// stored.
type SessionAttachRequest struct {
	Token     string     `json:"token"`
	Verifier  string     `json:"verifier"`
	ExpiresAt time.Time  `json:"expires_at" binding:"required"`
	IPAddress string     `json:"ip_address"`
	UserAgent string     `json:"user_agent"`
	StartedAt *time.Time `json:"started_at"`
}

// SessionAttachResponse confirms the stored session.
type SessionAttachResponse struct {
	Verifier  string    `json:"verifier"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports per-dependency readiness checks.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
