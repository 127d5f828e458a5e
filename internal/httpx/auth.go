package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserID returns the authenticated user id set by RequireAuth/OptionalAuth,
// or "" when the request is anonymous.
func UserID(c *gin.Context) string {
	if v, ok := c.Get("user_id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func parseToken(secret, raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	uid, _ := claims["user_id"].(string)
	if uid == "" {
		return "", errors.New("missing user_id claim")
	}
	return uid, nil
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is missing"})
			return
		}
		uid, err := parseToken(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("user_id", uid)
		c.Next()
	}
}

// OptionalAuth lets anonymous requests through but still rejects bad tokens.
// Cart routes use it: a shopper is either authenticated or carries a guest
// cart token, and a forged Authorization header must not fall back to guest.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c)
		if raw == "" {
			c.Next()
			return
		}
		uid, err := parseToken(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("user_id", uid)
		c.Next()
	}
}
