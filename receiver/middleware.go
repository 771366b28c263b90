package receiver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/ilp3"
	"github.com/totegamma/ilp3/internal/present/rest/presenter"
	"github.com/totegamma/ilp3/token"
)

var tracer = otel.Tracer("receiver")

type Verifier struct {
	secret    []byte
	evaluator token.Evaluator
}

func NewVerifier(secret []byte, evaluator token.Evaluator) *Verifier {
	return &Verifier{
		secret:    secret,
		evaluator: evaluator,
	}
}

// VerifyToken authenticates the request's bearer token and stores the
// verified account in the request context. Any failure ends the request
// with a bare 401.
func (v *Verifier) VerifyToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Receiver.VerifyToken")
		defer span.End()

		account, err := v.verify(c.Request().Header.Get(ilp3.HeaderAuthorization))
		if err != nil {
			span.RecordError(err)
			slog.DebugContext(ctx, "invalid token", slog.Any("error", err))
			return presenter.Unauthorized(c)
		}

		span.SetAttributes(attribute.String("Account", account))
		ctx = context.WithValue(ctx, accountCtxKey, account)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (v *Verifier) verify(authHeader string) (string, error) {
	if len(authHeader) < len(ilp3.BearerPrefix) || !strings.EqualFold(authHeader[:len(ilp3.BearerPrefix)], ilp3.BearerPrefix) {
		return "", ilp3.Unauthorized(ilp3.ErrMissingToken)
	}
	encoded := strings.TrimSpace(authHeader[len(ilp3.BearerPrefix):])
	return token.Verify(encoded, v.secret, v.evaluator)
}

type Extractor struct {
	streamData bool
	limit      int64
}

func NewExtractor(streamData bool, limit int64) *Extractor {
	if limit <= 0 {
		limit = ilp3.DefaultBodyLimit
	}
	return &Extractor{
		streamData: streamData,
		limit:      limit,
	}
}

// ExtractTransfer builds the transfer from the ILP headers and the body
// and stores it in the request context.
func (x *Extractor) ExtractTransfer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Receiver.ExtractTransfer")
		defer span.End()

		req := c.Request()

		transfer, err := ilp3.ReadTransfer(req.Header, nil)
		if err != nil {
			span.RecordError(err)
			return presenter.BadRequest(c, err)
		}

		if x.streamData {
			transfer.Data = ilp3.NewStreamData(&contextReader{ctx: ctx, rc: req.Body})
		} else {
			if req.ContentLength > x.limit {
				err := &ilp3.PayloadLimitError{Limit: x.limit}
				span.RecordError(err)
				return presenter.PayloadTooLarge(c, err)
			}
			body, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, x.limit))
			if err != nil {
				span.RecordError(err)
				var maxBytesErr *http.MaxBytesError
				if errors.As(err, &maxBytesErr) {
					return presenter.PayloadTooLarge(c, &ilp3.PayloadLimitError{Limit: x.limit})
				}
				if ctx.Err() != nil {
					return errors.Wrap(ctx.Err(), "client disconnected")
				}
				return presenter.BadRequestMessage(c, "failed to read request body")
			}
			transfer.Data = ilp3.NewBufferedData(body)
		}

		slog.DebugContext(ctx, "got transfer",
			slog.String("amount", ilp3.FormatAmount(transfer.Amount)),
			slog.String("expiry", ilp3.FormatExpiry(transfer.Expiry)),
			slog.String("condition", transfer.Condition),
			slog.String("destination", transfer.Destination),
			slog.String("data", ilp3.DescribeData(transfer.Data)),
		)

		ctx = context.WithValue(ctx, transferCtxKey, transfer)
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

// contextReader stops a streamed body as soon as the request is
// cancelled, so a settler reading it does not hang on a dead client.
type contextReader struct {
	ctx context.Context
	rc  io.ReadCloser
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.rc.Read(p)
}

func (r *contextReader) Close() error {
	return r.rc.Close()
}
