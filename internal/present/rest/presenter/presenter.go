package presenter

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"
)

type errorResponse struct {
	Error string `json:"error"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	return BadRequestMessage(c, err.Error())
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", msg), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func Unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: msg})
}

func Forbidden(c echo.Context, msg string) error {
	slog.InfoContext(c.Request().Context(), "forbidden", slog.String("error", msg), slog.String("module", "rest"))
	return c.JSON(http.StatusForbidden, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func Conflict(c echo.Context, msg string) error {
	slog.WarnContext(c.Request().Context(), "conflict", slog.String("error", msg), slog.String("module", "rest"))
	return c.JSON(http.StatusConflict, errorResponse{Error: msg})
}

func Gone(c echo.Context, msg string) error {
	return c.JSON(http.StatusGone, errorResponse{Error: msg})
}

func InternalError(c echo.Context, err error) error {
	ctx := c.Request().Context()
	slog.ErrorContext(
		ctx, "internal error",
		slog.String("error", err.Error()),
		slog.String("traceID", trace.SpanContextFromContext(ctx).TraceID().String()),
		slog.String("module", "rest"),
	)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}
