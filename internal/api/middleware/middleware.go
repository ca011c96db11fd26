package middleware

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/Somerville-Events/somerville.events-sub000/config"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/response"
)

// AccessLog writes one structured line per request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("remote", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.Error("http request", fields...)
		case c.Writer.Status() >= 400:
			logger.Warn("http request", fields...)
		default:
			logger.Debug("http request", fields...)
		}
	}
}

// RateLimit rejects requests beyond the limiter's budget with 429. onReject
// may be nil.
func RateLimit(l *rate.Limiter, onReject func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			if onReject != nil {
				onReject()
			}
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}

// BasicAuth gates a route group when credentials are configured and is a
// pass-through otherwise. The configured password may already be a bcrypt hash.
func BasicAuth(cfg config.AuthConfig) (gin.HandlerFunc, error) {
	if !cfg.Enabled() {
		return func(c *gin.Context) { c.Next() }, nil
	}
	hash := []byte(cfg.Password)
	if _, err := bcrypt.Cost(hash); err != nil {
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash basic auth password: %w", err)
		}
	}
	user := []byte(cfg.Username)

	return func(c *gin.Context) {
		u, p, ok := c.Request.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(u), user) == 1
		passOK := ok && bcrypt.CompareHashAndPassword(hash, []byte(p)) == nil
		if !ok || !userOK || !passOK {
			c.Header("WWW-Authenticate", `Basic realm="somerville.events", charset="UTF-8"`)
			response.Unauthorized(c)
			return
		}
		c.Set(gin.AuthUserKey, u)
		c.Next()
	}, nil
}
