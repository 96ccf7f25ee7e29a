package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-Id"
	CtxRequestID    = "request_id"
	ctxLogger       = "logger"
)

// RequestLogger assigns every request an ID (reusing X-Request-Id when the
// client sent one), exposes a request-scoped logger via Logger(c) and logs
// one line per request once the handler returns.
func RequestLogger(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(HeaderRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, rid)
			c.Set(CtxRequestID, rid)
			c.Set(ctxLogger, base.With(zap.String("request_id", rid)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("user", identity(c)),
				zap.String("request_id", rid),
			}
			switch {
			case status >= 500:
				base.Error("request", fields...)
			case status >= 400:
				base.Warn("request", fields...)
			default:
				base.Info("request", fields...)
			}
			return nil
		}
	}
}

// Logger returns the request-scoped logger, or a no-op logger outside
// RequestLogger.
func Logger(c echo.Context) *zap.Logger {
	if l, ok := c.Get(ctxLogger).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
