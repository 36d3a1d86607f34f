package logger

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestIDKey is the Fiber locals key set by the requestid middleware.
const RequestIDKey = "requestid"

// Middleware logs every request once it has been handled.
func Middleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.String("ip", c.IP()),
			zap.Duration("latency", time.Since(start)),
		}
		if rid, ok := c.Locals(RequestIDKey).(string); ok && rid != "" {
			fields = append(fields, zap.String("request_id", rid))
		}

		log.Info("incoming request", fields...)
		return err
	}
}

// FromCtx returns log annotated with the request id of c, if any.
func FromCtx(c *fiber.Ctx, log *zap.Logger) *zap.Logger {
	if rid, ok := c.Locals(RequestIDKey).(string); ok && rid != "" {
		return log.With(zap.String("request_id", rid))
	}
	return log
}
