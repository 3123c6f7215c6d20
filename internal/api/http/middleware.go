package http

import (
	"context"
	"errors"
	"math"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/learning-api/internal/observability"
	apperrors "github.com/spec-kit/learning-api/pkg/util"
)

// AppConfig returns the fiber settings the pipeline relies on. Routing is
// case-sensitive so one resource maps to exactly one cache key and
// invalidation prefixes match every path that reaches a cached handler.
func AppConfig(name, proxyHeader string, logger *zap.Logger) fiber.Config {
	return fiber.Config{
		AppName:       name,
		ProxyHeader:   proxyHeader,
		CaseSensitive: true,
		ErrorHandler:  ErrorHandler(logger),
	}
}

// RegisterMiddlewares attaches global middlewares. The request logger sits
// outermost so it observes the status written by the error handler.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
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

func errorHandlingMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				err = writeError(c, logger, err)
			}
		}()
		return c.Next()
	}
}

// ErrorHandler is installed as fiber's ErrorHandler so errors raised outside
// the middleware chain, such as unmatched routes, render the same shape.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return writeError(c, logger, err)
	}
}

func writeError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	domainErr := toDomainError(err)
	if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}

	body := fiber.Map{
		"status":  "error",
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}
	if domainErr.HTTPStatus == fiber.StatusTooManyRequests {
		retryAfter := ceilSeconds(domainErr.RetryAfter)
		body["retryAfter"] = retryAfter
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
	}
	return c.Status(domainErr.HTTPStatus).JSON(body)
}

func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		if fiberErr.Code >= fiber.StatusInternalServerError {
			return apperrors.NewInternalError(err).(*apperrors.DomainError)
		}
		return &apperrors.DomainError{
			Code:       fiberErrorCode(fiberErr.Code),
			Message:    fiberErr.Message,
			HTTPStatus: fiberErr.Code,
		}
	}
	return apperrors.ToDomainError(err)
}

func fiberErrorCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return apperrors.CodeNotFound
	case fiber.StatusConflict:
		return apperrors.CodeConflict
	case fiber.StatusUnauthorized:
		return apperrors.CodeMissingCredential
	case fiber.StatusTooManyRequests:
		return apperrors.CodeRateLimited
	}
	if status >= fiber.StatusInternalServerError {
		return apperrors.CodeInternal
	}
	return apperrors.CodeValidationFailed
}

// ceilSeconds rounds d up to whole seconds, never below 1.
func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
