package presenter

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type errorResponse struct {
	Error string `json:"error"`
}

func BadRequest(c echo.Context, err error) error {
	slog.InfoContext(c.Request().Context(), "bad request", slog.Any("error", err))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.InfoContext(c.Request().Context(), "bad request", slog.String("reason", msg))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

// Unauthorized never says why. The cause belongs in logs and spans only.
func Unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
}

func PayloadTooLarge(c echo.Context, err error) error {
	slog.InfoContext(c.Request().Context(), "payload too large", slog.Any("error", err))
	return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
}

func InternalError(c echo.Context, err error) error {
	span := trace.SpanFromContext(c.Request().Context())
	span.RecordError(err)
	span.SetStatus(codes.Error, "internal error")
	slog.ErrorContext(c.Request().Context(), "internal error", slog.Any("error", err))
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
