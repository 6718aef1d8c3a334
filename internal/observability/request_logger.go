package observability

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

// RequestLogger logs each request and feeds the HTTP metrics. It sits inside
// the error middleware so the status it sees is the final one.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
		case err != nil:
			status = apperrors.ToDomainError(err).HTTPStatus
		}

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		metrics.RecordRequest(route, c.Method(), status, duration)

		logger.Debug("http request",
			zap.String("method", c.Method()),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.IP()))
		return err
	}
}
