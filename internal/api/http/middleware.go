package http

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/utility-crm/internal/api/dto"
	"github.com/spec-kit/utility-crm/internal/observability"
	apperrors "github.com/spec-kit/utility-crm/pkg/util/errorutil"
)

// MiddlewareConfig controls global middlewares.
type MiddlewareConfig struct {
	Timeout time.Duration
	// ExposeStack adds stack traces to 5xx error bodies.
	ExposeStack bool
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, cfg MiddlewareConfig) {
	app.Use(requestid.New())
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics, cfg.ExposeStack))
	if cfg.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics, exposeStack bool) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		var stack []byte
		defer func() {
			if r := recover(); r != nil {
				stack = debug.Stack()
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", stack))
				err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
			if err != nil {
				err = writeError(c, logger, metrics, err, exposeStack, stack)
			}
		}()
		return c.Next()
	}
}

// ErrorHandler renders errors that escape the middleware chain, such as
// unmatched routes.
func ErrorHandler(logger *zap.Logger, metrics *observability.Metrics, exposeStack bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return writeError(c, logger, metrics, err, exposeStack, nil)
	}
}

func writeError(c *fiber.Ctx, logger *zap.Logger, metrics *observability.Metrics, err error, exposeStack bool, stack []byte) error {
	domainErr := apperrors.ToDomainError(err)
	route := c.Route().Path
	if route == "" {
		route = c.Path()
	}
	metrics.RecordError(route, c.Method(), domainErr.Code)

	body := &dto.ErrorBody{Code: domainErr.Code}
	if len(domainErr.Details) > 0 {
		body.Details = domainErr.Details
	}
	if domainErr.HTTPStatus >= 500 {
		logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			zap.Error(domainErr),
		)
		if exposeStack {
			if stack == nil {
				stack = debug.Stack()
			}
			body.Stack = string(stack)
		}
	}
	return c.Status(domainErr.HTTPStatus).JSON(dto.Envelope{
		Success: false,
		Message: domainErr.Message,
		Error:   body,
	})
}
