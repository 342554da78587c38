package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/bytesize-travel/service-curation/internal/auth"
	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// AuthMiddleware requires a valid bearer token and stores its claims.
func AuthMiddleware(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c, jwtManager) {
			c.Next()
		}
	}
}

// RequireRole rejects requests whose token carries none of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authorize(c, roles) {
			c.Next()
		}
	}
}

// Authorize authenticates and checks roles inside a handler, for routes
// where only some requests need a token. On false the response is written.
func Authorize(c *gin.Context, jwtManager *auth.JWTManager, roles ...string) bool {
	return authenticate(c, jwtManager) && authorize(c, roles)
}

// GetClaims extracts claims from the gin context.
func GetClaims(c *gin.Context) (*auth.Claims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func authenticate(c *gin.Context, jwtManager *auth.JWTManager) bool {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing authorization header"})
		return false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid authorization header format"})
		return false
	}

	claims, err := jwtManager.ValidateToken(parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
		return false
	}

	c.Set(claimsKey, claims)
	return true
}

func authorize(c *gin.Context, roles []string) bool {
	claims, ok := GetClaims(c)
	if !ok || !slices.Contains(roles, claims.Role) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "insufficient permissions"})
		return false
	}
	return true
}
