package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
	"github.com/pscheid92/askpulse/internal/domain"
	"github.com/pscheid92/askpulse/internal/platform/correlation"
	apperrors "github.com/pscheid92/askpulse/internal/platform/errors"
)

const (
	// userIDHeader carries the identity asserted by the upstream auth gateway.
	userIDHeader        = "X-User-ID"
	correlationIDHeader = "X-Correlation-ID"
	userIDKey           = "userID"
	maxCorrelationIDLen = 64
)

// correlationMiddleware reuses a caller-supplied correlation id or mints one,
// and echoes it back in the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlationIDHeader)
		if id == "" || len(id) > maxCorrelationIDLen {
			id = correlation.NewID()
		}
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlationIDHeader, id)
		return next(c)
	}
}

func identityMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := strings.TrimSpace(c.Request().Header.Get(userIDHeader))
		if userID == "" {
			return apperrors.UnauthorizedError("missing user identity")
		}
		c.Set(userIDKey, userID)
		return next(c)
	}
}

func currentUserID(c echo.Context) string {
	userID, _ := c.Get(userIDKey).(string)
	return userID
}

func ErrorHandlingMiddleware(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var structuredErr *apperrors.Error
			var status int
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				// router misses, bind failures and middleware rejections keep echo's status code
				structuredErr = apperrors.FromHTTPStatus(httpErr.Code, httpErrorMessage(httpErr)).WithCause(httpErr.Internal)
				status = httpErr.Code
			} else {
				structuredErr = toStructuredError(err)
				status = structuredErr.HTTPStatus()
			}

			logError(c, structuredErr, status)
			if m != nil {
				m.ErrorsTotal.WithLabelValues(string(structuredErr.Type)).Inc()
			}

			if err := c.JSON(status, structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func httpErrorMessage(httpErr *echo.HTTPError) string {
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		return msg
	}
	if httpErr.Message != nil {
		return fmt.Sprint(httpErr.Message)
	}
	return http.StatusText(httpErr.Code)
}

// toStructuredError maps domain sentinels onto client-facing error types.
// Anything unrecognised becomes an internal error with a generic message.
func toStructuredError(err error) *apperrors.Error {
	var structuredErr *apperrors.Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	switch {
	case errors.Is(err, domain.ErrInvalidVoter),
		errors.Is(err, domain.ErrInvalidPolarity),
		errors.Is(err, domain.ErrInvalidEntity),
		errors.Is(err, domain.ErrInvalidUser):
		return apperrors.ValidationError(rootMessage(err)).WithCause(err)
	case errors.Is(err, domain.ErrEntityNotFound):
		return apperrors.NotFoundError(domain.ErrEntityNotFound.Error()).WithCause(err)
	case errors.Is(err, domain.ErrNotificationNotFound):
		return apperrors.NotFoundError(domain.ErrNotificationNotFound.Error()).WithCause(err)
	case errors.Is(err, domain.ErrEntityConflict):
		return apperrors.ConflictError(domain.ErrEntityConflict.Error()).WithCause(err)
	case errors.Is(err, domain.ErrRateLimited):
		return apperrors.RateLimitedError(domain.ErrRateLimited.Error()).WithCause(err)
	case errors.Is(err, domain.ErrTransientStorage), errors.Is(err, context.DeadlineExceeded):
		return apperrors.UnavailableError(domain.ErrTransientStorage.Error(), err)
	default:
		return apperrors.AsStructuredError(err)
	}
}

// rootMessage drops the operation prefixes added while wrapping, keeping the
// innermost detail, e.g. "invalid entity reference: unknown kind \"x\"".
func rootMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{domain.ErrInvalidVoter, domain.ErrInvalidPolarity, domain.ErrInvalidEntity, domain.ErrInvalidUser} {
		if i := strings.Index(msg, sentinel.Error()); i >= 0 {
			return msg[i:]
		}
	}
	return msg
}

func logError(c echo.Context, err *apperrors.Error, status int) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", status,
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if userID := currentUserID(c); userID != "" {
		attrs = append(attrs, "user_id", userID)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeUnauthorized:
		slog.InfoContext(ctx, "Client error", attrs...)
	case apperrors.TypeConflict, apperrors.TypeRateLimited:
		slog.WarnContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeUnavailable:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.WarnContext(ctx, "Dependency unavailable", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	}
}
