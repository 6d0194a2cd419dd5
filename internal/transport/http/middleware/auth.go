package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/infra/security"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:   code,
		Message: message,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth validates the Authorization header and stores the actor on the context.
func RequireAuth(tokens *security.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "unauthorized", "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "unauthorized", "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "unauthorized", "missing access token"))
			return
		}

		actor, err := tokens.ParseAccessToken(token)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrExpiredAccessToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "unauthorized", "access token expired"))
			case errors.Is(err, security.ErrInvalidAccessToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "unauthorized", "invalid access token"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "internal_error", "authentication failed"))
			}
			return
		}

		c.Set(ActorKey, actor)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = actor.UserID
		}

		c.Next()
	}
}

// RequireCapability checks that the authenticated actor carries the capability.
func RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "unauthorized", "authentication required"))
			return
		}

		if !actor.HasCapability(capability) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "not_allowed", "insufficient capabilities"))
			return
		}

		c.Next()
	}
}

// GetActor retrieves the authenticated actor from context (helper for handlers)
func GetActor(c *gin.Context) (domain.Actor, bool) {
	value, exists := c.Get(ActorKey)
	if !exists {
		return domain.Actor{}, false
	}

	if actor, ok := value.(domain.Actor); ok {
		return actor, true
	}

	return domain.Actor{}, false
}
