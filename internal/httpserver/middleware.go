package httpserver

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskhub/internal/apperr"
	"taskhub/internal/auth"
	"taskhub/internal/ratelimit"
	"taskhub/pkg/metrics"
)

// RequestLog 请求日志 + HTTP 指标
func RequestLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(status), latency)
	}
}

// Authenticate 校验 bearer token 并把 principal 放进请求上下文
func Authenticate(validator *auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.ExtractToken(c.Request)
		if token == "" {
			abortWithError(c, apperr.Unauthenticated("missing bearer token"))
			return
		}

		principal, err := validator.Validate(token)
		if err != nil {
			if e, ok := apperr.As(err); ok {
				abortWithError(c, e)
			} else {
				abortWithError(c, apperr.Unauthenticated("invalid or expired token"))
			}
			return
		}

		auth.SetPrincipal(c, principal)
		c.Next()
	}
}

// RateLimit 按 token 身份限流；每个响应都带 X-RateLimit-* 头。
// 必须排在 Authenticate 之后。
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := auth.PrincipalFromContext(c)
		if principal == nil {
			abortWithError(c, apperr.Unauthenticated("missing bearer token"))
			return
		}

		result := limiter.Allow(principal.Subject)

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset, 10))

		if !result.Allowed {
			metrics.RateLimitRejectedCount.Inc()
			abortWithError(c, apperr.RateLimitExceeded(result.Limit, result.Reset))
			return
		}

		c.Next()
	}
}

// RequireScope 要求 token 持有指定 scope
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := auth.PrincipalFromContext(c)
		if principal == nil {
			abortWithError(c, apperr.Unauthenticated("missing bearer token"))
			return
		}

		if !principal.HasScope(scope) {
			abortWithError(c, apperr.Forbidden(scope))
			return
		}

		c.Next()
	}
}

func abortWithError(c *gin.Context, e *apperr.Error) {
	c.JSON(apperr.HTTPStatus(e), apperr.Envelope{Error: e})
	c.Abort()
}
