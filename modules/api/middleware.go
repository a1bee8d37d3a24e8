package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/example/asset-vault/domain/user"
	"github.com/example/asset-vault/middleware/ratelimit"
	"github.com/gin-gonic/gin"
)

// principalContextKey is the gin context key holding the resolved principal.
const principalContextKey = "principal"

// PrincipalResolver maps a bearer token to the authenticated principal.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, token string) (*user.Principal, error)
}

// authMiddleware resolves the bearer token and aborts UNAUTHENTICATED when
// the credential is missing or invalid. No further processing occurs.
func authMiddleware(resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:    "UNAUTHENTICATED",
				Message: "missing or malformed bearer token",
			})
			return
		}

		principal, err := resolver.ResolvePrincipal(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:    "UNAUTHENTICATED",
				Message: "invalid or expired token",
			})
			return
		}

		c.Set(principalContextKey, principal)
		c.Next()
	}
}

// principalFrom returns the principal stored by authMiddleware.
func principalFrom(c *gin.Context) *user.Principal {
	v, _ := c.Get(principalContextKey)
	principal, _ := v.(*user.Principal)
	return principal
}

// ticketLimitMiddleware caps ticket issuance per principal. A nil limiter
// disables the cap.
func ticketLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		principal := principalFrom(c)
		allowed, err := limiter.Allow(c.Request.Context(), principal.ID)
		if err != nil {
			// The limiter backend being down must not block uploads.
			log.Printf("[api] rate limiter unavailable: %v", err)
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Code:    "RATE_LIMITED",
				Message: "too many ticket requests, retry later",
			})
			return
		}
		c.Next()
	}
}

// loggerMiddleware returns a gin middleware for request logging.
func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		log.Printf("[api] %s %s %d %v", c.Request.Method, path, status, latency)
	}
}
