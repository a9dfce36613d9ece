package middleware

import (
	"net/http"

	"truthlens-api/services"

	"github.com/gin-gonic/gin"
)

const ClaimsKey = "auth_claims"

// TokenValidator is satisfied by services.AuthService.
type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

// RequireBearer only checks that a bearer token is present. The token is not
// validated.
func RequireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := services.BearerToken(c.GetHeader("Authorization")); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches claims for a valid token and lets guests through.
// A token that is present but invalid is rejected.
func OptionalAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := services.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}
		claims, err := v.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireAuth rejects requests without a valid token.
func RequireAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := services.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}
		claims, err := v.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// CurrentClaims returns the claims set by OptionalAuth or RequireAuth.
func CurrentClaims(c *gin.Context) (*services.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*services.Claims)
	return claims, ok && claims != nil
}
