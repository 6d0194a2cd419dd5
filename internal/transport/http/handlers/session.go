package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/infra/security"
	"github.com/arklim/social-platform-sessions/internal/transport/http/middleware"
	"github.com/arklim/social-platform-sessions/internal/usecase"
)

// NonceHeader carries the anti-forgery token on revocation requests.
const NonceHeader = "X-Session-Nonce"

// SessionHandler exposes endpoints for listing and revoking user sessions.
type SessionHandler struct {
	sessions *usecase.SessionService
	nonces   *security.NonceProvider
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions *usecase.SessionService, nonces *security.NonceProvider) *SessionHandler {
	return &SessionHandler{sessions: sessions, nonces: nonces}
}

// RegisterRoutes binds the session management routes to the provided router group.
// The group is expected to carry the :user_id path parameter.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("", h.ListSessions)
	r.DELETE("/:verifier", h.DestroySession)
	r.DELETE("", h.DestroyOtherSessions)
}

func sessionErrorCases() []ErrorCase {
	return []ErrorCase{
		{Err: usecase.ErrNoUserID, Status: http.StatusBadRequest, Code: "no_user_id", Message: "target user id is required"},
		{Err: usecase.ErrNoVerifier, Status: http.StatusBadRequest, Code: "no_hash", Message: "session verifier is required"},
		{Err: usecase.ErrInvalidUser, Status: http.StatusNotFound, Code: "invalid_user", Message: "target user does not exist"},
		{Err: usecase.ErrInvalidNonce, Status: http.StatusForbidden, Code: "invalid_nonce", Message: "invalid or expired action token"},
		{Err: usecase.ErrNotAllowed, Status: http.StatusForbidden, Code: "not_allowed", Message: "not allowed to manage sessions for this user"},
		{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Code: "not_found", Message: "session not found"},
		{Err: usecase.ErrStorageUnavailable, Status: http.StatusServiceUnavailable, Code: "storage_unavailable", Message: "session storage unavailable"},
	}
}

// ListSessions godoc
// @Summary List sessions for a user
// @Description Returns the target user's live sessions split into the caller's current session and all others, plus fresh action tokens for revocation.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param user_id path string true "Target user identifier"
// @Success 200 {object} SessionListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/users/{user_id}/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "unauthorized", "authentication required"))
		return
	}

	targetUserID := strings.TrimSpace(c.Param("user_id"))

	list, err := h.sessions.ListSessions(c.Request.Context(), actor, targetUserID)
	if err != nil {
		RespondWithMappedError(c, err, sessionErrorCases(), http.StatusInternalServerError, "internal_error", "failed to list sessions")
		return
	}

	response := SessionListResponse{
		Others: make([]SessionPayload, 0, len(list.Others)),
		Nonces: NonceSet{
			DestroySession:  h.nonces.Create(usecase.ActionDestroySession, targetUserID),
			DestroySessions: h.nonces.Create(usecase.ActionDestroySessions, targetUserID),
		},
	}

	if list.Current != nil {
		payload := newSessionPayload(*list.Current)
		response.Current = &payload
		response.Total++
	}
	for _, session := range list.Others {
		response.Others = append(response.Others, newSessionPayload(session))
		response.Total++
	}

	c.JSON(http.StatusOK, response)
}

// DestroySession godoc
// @Summary Revoke a single session
// @Description Revokes the session identified by verifier. Requires a destroy_session action token scoped to the target user.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param user_id path string true "Target user identifier"
// @Param verifier path string true "Session verifier"
// @Param X-Session-Nonce header string true "Action token"
// @Success 204 "Session revoked"
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/users/{user_id}/sessions/{verifier} [delete]
func (h *SessionHandler) DestroySession(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "unauthorized", "authentication required"))
		return
	}

	targetUserID := strings.TrimSpace(c.Param("user_id"))
	verifier := strings.TrimSpace(c.Param("verifier"))
	nonce := c.GetHeader(NonceHeader)

	if err := h.sessions.DestroySingle(c.Request.Context(), actor, targetUserID, verifier, nonce); err != nil {
		RespondWithMappedError(c, err, sessionErrorCases(), http.StatusInternalServerError, "internal_error", "failed to revoke session")
		return
	}

	c.Status(http.StatusNoContent)
}

// DestroyOtherSessions godoc
// @Summary Revoke all sessions, optionally keeping one
// @Description Revokes every session for the target user. When the keep query parameter names a still-present verifier that session survives; otherwise everything goes. Requires a destroy_sessions action token.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param user_id path string true "Target user identifier"
// @Param keep query string false "Verifier of the session to keep"
// @Param X-Session-Nonce header string true "Action token"
// @Success 200 {object} SessionPurgeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/users/{user_id}/sessions [delete]
func (h *SessionHandler) DestroyOtherSessions(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "unauthorized", "authentication required"))
		return
	}

	targetUserID := strings.TrimSpace(c.Param("user_id"))
	keep := strings.TrimSpace(c.Query("keep"))
	nonce := c.GetHeader(NonceHeader)

	destroyed, err := h.sessions.DestroyOthers(c.Request.Context(), actor, targetUserID, keep, nonce)
	if err != nil {
		RespondWithMappedError(c, err, sessionErrorCases(), http.StatusInternalServerError, "internal_error", "failed to revoke sessions")
		return
	}

	c.JSON(http.StatusOK, SessionPurgeResponse{Destroyed: destroyed})
}

// AttachSession godoc
// @Summary Attach a session for a user
// @Description Records a freshly authenticated login. Accepts either the raw session token, hashed at the edge, or a precomputed verifier. Internal endpoint gated on the manage_sessions capability.
// @Tags Sessions
// @Security Bearer
// @Accept json
// @Produce json
// @Param user_id path string true "Target user identifier"
// @Param request body SessionAttachRequest true "Session attachment payload"
// @Success 201 {object} SessionAttachResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /internal/v1/users/{user_id}/sessions [post]
func (h *SessionHandler) AttachSession(c *gin.Context) {
	targetUserID := strings.TrimSpace(c.Param("user_id"))

	var req SessionAttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid_request", "expires_at is required"))
		return
	}

	verifier := strings.TrimSpace(req.Verifier)
	if verifier == "" {
		token := strings.TrimSpace(req.Token)
		if token == "" {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "no_hash", "token or verifier is required"))
			return
		}
		verifier = security.HashToken(token)
	}

	meta := domain.SessionMetadata{
		IPAddress: strings.TrimSpace(req.IPAddress),
		UserAgent: strings.TrimSpace(req.UserAgent),
		Started:   req.StartedAt,
	}
	if meta.IPAddress == "" {
		meta.IPAddress = c.ClientIP()
	}

	session, err := h.sessions.AttachSession(c.Request.Context(), targetUserID, verifier, req.ExpiresAt, meta)
	if err != nil {
		RespondWithMappedError(c, err, sessionErrorCases(), http.StatusBadRequest, "invalid_request", "failed to attach session")
		return
	}

	c.JSON(http.StatusCreated, SessionAttachResponse{
		Verifier:  session.Verifier,
		ExpiresAt: session.Expiration,
	})
}
