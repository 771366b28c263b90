// Package receiver implements the inbound side of an ILP-over-HTTP hop.
//
// Every request runs through a fixed chain of stages: VerifyToken,
// ExtractTransfer, the caller's Settler, and the response. A stage only
// runs when every earlier stage succeeded, and each one passes its result
// down through the request context instead of shared state.
package receiver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/totegamma/ilp3"
	"github.com/totegamma/ilp3/internal/clock"
	"github.com/totegamma/ilp3/internal/present/rest/presenter"
	"github.com/totegamma/ilp3/token"
)

const DefaultPath = "/*"

// Settler decides whether a verified transfer is fulfilled.
type Settler interface {
	Settle(ctx context.Context, account string, transfer *ilp3.Transfer) (Outcome, error)
}

type SettlerFunc func(ctx context.Context, account string, transfer *ilp3.Transfer) (Outcome, error)

func (f SettlerFunc) Settle(ctx context.Context, account string, transfer *ilp3.Transfer) (Outcome, error) {
	return f(ctx, account, transfer)
}

// Outcome is the settler's answer. A non-empty Fulfillment always yields
// 200 with the ILP-Fulfillment header. Without one, Status is used as is
// (204 when zero) and no fulfillment header is written.
type Outcome struct {
	Fulfillment string
	Data        *ilp3.Data
	Status      int
}

type Config struct {
	Path       string
	Secret     []byte
	StreamData bool
	BodyLimit  int64
	Clock      clock.Clock
}

// Register mounts the receiver pipeline on e.
func Register(e *echo.Echo, cfg Config, settler Settler) error {
	if len(cfg.Secret) < ilp3.MinSecretLength {
		return token.ErrShortSecret
	}
	if settler == nil {
		return errors.New("receiver: settler is required")
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	verifier := NewVerifier(cfg.Secret, token.NewEvaluator(cfg.Clock))
	extractor := NewExtractor(cfg.StreamData, cfg.BodyLimit)

	e.POST(cfg.Path, Handler(settler), verifier.VerifyToken, extractor.ExtractTransfer)
	return nil
}

// New builds a standalone echo server running the receiver pipeline.
func New(cfg Config, settler Settler) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("ilp3-receiver"))

	if err := Register(e, cfg, settler); err != nil {
		return nil, err
	}
	return e, nil
}

// Handler runs the settler on the extracted transfer and writes the
// response. It expects VerifyToken and ExtractTransfer to have run.
func Handler(settler Settler) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Receiver.Settle")
		defer span.End()

		account, _ := Account(ctx)
		transfer, ok := TransferFrom(ctx)
		if !ok {
			return presenter.InternalError(c, errors.New("no transfer in request context"))
		}

		outcome, err := settler.Settle(ctx, account, transfer)
		if err != nil {
			span.RecordError(err)
			if ctx.Err() != nil {
				slog.DebugContext(ctx, "client disconnected during settlement", slog.Any("error", err))
				return errors.Wrap(ctx.Err(), "client disconnected")
			}
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return httpErr
			}
			return presenter.InternalError(c, err)
		}

		return respond(c, outcome)
	}
}

func respond(c echo.Context, outcome Outcome) error {
	if outcome.Fulfillment != "" {
		slog.DebugContext(c.Request().Context(), "responding to sender with fulfillment")
		c.Response().Header().Set(ilp3.HeaderFulfillment, outcome.Fulfillment)
		return writeData(c, http.StatusOK, outcome.Data)
	}

	status := outcome.Status
	if status == 0 {
		status = http.StatusNoContent
	}
	if status == http.StatusNoContent || outcome.Data == nil {
		return c.NoContent(status)
	}
	return writeData(c, status, outcome.Data)
}

func writeData(c echo.Context, status int, data *ilp3.Data) error {
	if data.Streaming() {
		rc, err := data.Open()
		if err != nil {
			return presenter.InternalError(c, err)
		}
		defer rc.Close()
		return c.Stream(status, ilp3.ContentTypeOctetStream, rc)
	}
	body, err := data.ReadAll()
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return c.Blob(status, ilp3.ContentTypeOctetStream, body)
}
