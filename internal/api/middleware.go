package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/metrics"
	"alcyxob/coach-sessions/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v9"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Constants for context keys
const (
	ContextCallerKey    = "caller"
	ContextRequestIDKey = "request_id"
)

const (
	headerRequestID = "X-Request-ID"
	requestIDMaxLen = 64
)

// Authenticator turns a bearer token into the current identity of its account.
type Authenticator interface {
	Authenticate(ctx context.Context, tokenString string) (domain.Caller, error)
}

// RequestRateLimiter is satisfied by *redis_rate.Limiter.
type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
// Browsers cannot set headers on an EventSource, so the token may also come
// as the access_token query parameter.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("access_token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			// Expecting "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}
			tokenString = parts[1]
		}
		if tokenString == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		caller, err := auth.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			if errors.Is(err, service.ErrInvalidToken) {
				abortWithError(c, http.StatusUnauthorized, err.Error())
				return
			}
			respondError(c, err)
			return
		}

		c.Set(ContextCallerKey, caller)
		c.Next()
	}
}

// RoleMiddleware lets the request through when the caller holds any of the roles.
// Must run AFTER AuthMiddleware.
func RoleMiddleware(allowedRoles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerFromContext(c)
		if !caller.IsAuthenticated() {
			abortWithError(c, http.StatusUnauthorized, "authentication required")
			return
		}
		for _, role := range allowedRoles {
			if caller.Has(role) {
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, fmt.Sprintf("Access denied: requires one of roles %v", allowedRoles))
	}
}

// callerFromContext returns the identity set by AuthMiddleware, or the zero
// Caller on public routes.
func callerFromContext(c *gin.Context) domain.Caller {
	raw, exists := c.Get(ContextCallerKey)
	if !exists {
		return domain.Caller{}
	}
	caller, _ := raw.(domain.Caller)
	return caller
}

// RequestID reads X-Request-ID or generates one, and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(headerRequestID)
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.New().String()
		}

		c.Set(ContextRequestIDKey, rid)
		c.Header(headerRequestID, rid)

		c.Next()
	}
}

// Logger logs one structured line per request.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", statusCode),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(ContextRequestIDKey)),
		}
		if caller := callerFromContext(c); caller.IsAuthenticated() {
			fields = append(fields, zap.String("user_id", caller.UserID.Hex()))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
		}

		switch {
		case statusCode >= 500:
			log.Error("request failed", fields...)
		case statusCode >= 400:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}

// RequestMetrics counts requests and observes their latency per route template.
func RequestMetrics(m *metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.CounterRequests.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.HistogramRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RateLimit allows allowedPerMin requests per client IP on the route.
// A nil limiter lets every request through.
func RateLimit(rateLimiter RequestRateLimiter, routeName string, allowedPerMin int, m *metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rateLimiter == nil {
			c.Next()
			return
		}

		res, err := rateLimiter.Allow(
			c.Request.Context(),
			routeName+":"+c.ClientIP(),
			redis_rate.PerMinute(allowedPerMin),
		)
		if err != nil {
			_ = c.Error(err)
			abortWithError(c, http.StatusInternalServerError, "rate limit internal error")
			return
		}

		if res.Allowed > 0 {
			c.Next()
			return
		}

		m.CounterRateLimitedRequests.Inc()
		retryAfter := int(res.RetryAfter.Round(time.Second).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		abortWithError(c, http.StatusTooManyRequests, fmt.Sprintf("retry after %d seconds", retryAfter))
	}
}
