package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RoleDevice is the role carried by tokens issued to registered kiosks.
const RoleDevice = "device"

// Context key for claims; unexported so handlers go through ClaimsFrom.
const claimsKey = "faceattend.claims"

// DeviceAuth enforces bearer JWT tokens signed with HS256 and issued to a
// kiosk device. Valid tokens with any other role are rejected with 403.
func DeviceAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Role != RoleDevice {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "device token required"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims DeviceAuth stored on the request context.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}
