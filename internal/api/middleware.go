package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sheikh-saqib/banking-ledger/internal/logger"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
)

const sessionKey = "session"

// Claims is the bearer token payload. The subject is the user id.
type Claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// ParseToken verifies an HS256 token and returns its claims.
func ParseToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Authenticate resolves the bearer token into a models.Session for the handlers.
func Authenticate(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenStr string
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenStr = strings.TrimSpace(parts[1])
		}
		if tokenStr == "" {
			fail(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := ParseToken(jwtSecret, tokenStr)
		if err != nil {
			logger.Warn("rejected bearer token", logger.Fields{"path": c.Request.URL.Path, "error": err.Error()})
			fail(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		c.Set(sessionKey, models.Session{UserID: claims.Subject, IsAdmin: claims.Admin})
		c.Next()
	}
}

// RequireAdmin stops non-admin sessions before the handler runs.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sessionFrom(c).IsAdmin {
			fail(c, http.StatusForbidden, "admin privileges required")
			return
		}
		c.Next()
	}
}

func sessionFrom(c *gin.Context) models.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(models.Session); ok {
			return s
		}
	}
	return models.Session{}
}

// RequestLogger logs every request and its outcome with the structured logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logger.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"query":      c.Request.URL.RawQuery,
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"userId":     sessionFrom(c).UserID,
		}
		if len(c.Errors) > 0 {
			logger.Error("http request failed", c.Errors.Last(), fields)
			return
		}
		logger.Info("http request", fields)
	}
}
