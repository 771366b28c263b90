package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/totegamma/ilp3"
	"github.com/totegamma/ilp3/internal/clock"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "ilp3-go"
	maxDrainBytes    = 64 << 10
)

var tracer = otel.Tracer("client")

type Client struct {
	client    *http.Client
	auth      *AuthResolver
	transport http.RoundTripper
	userAgent string
}

type Options struct {
	// Timeout bounds the whole exchange, including reading a streamed
	// response body.
	Timeout time.Duration

	// TokenWindow is how long an outbound token stays valid after it is
	// caveated.
	TokenWindow time.Duration

	UserAgent string
	Clock     clock.Clock
	Transport http.RoundTripper
}

func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.TokenWindow == 0 {
		opts.TokenWindow = ilp3.DefaultTokenWindow
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}

	httpClient := http.Client{
		Timeout: opts.Timeout,
	}

	c := &Client{
		client:    &httpClient,
		auth:      NewAuthResolver(opts.TokenWindow, opts.Clock),
		transport: opts.Transport,
		userAgent: opts.UserAgent,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set(ilp3.HeaderUserAgent, c.userAgent)
	return c.transport.RoundTrip(req)
}

// Send posts transfer to connector and reports the receiver's answer.
//
// With streamData set, the request body is handed to the transport
// without buffering and the returned Result carries the live response
// body, which the caller must consume. Otherwise both bodies are fully
// materialized.
func (c *Client) Send(ctx context.Context, connector string, transfer *ilp3.Transfer, streamData bool) (*ilp3.Result, error) {
	ctx, span := tracer.Start(ctx, "Client.Send")
	defer span.End()

	span.SetAttributes(
		attribute.String("ilp.destination", transfer.Destination),
		attribute.Bool("ilp.stream", streamData),
	)

	slog.DebugContext(ctx, "sending transfer",
		slog.String("amount", ilp3.FormatAmount(transfer.Amount)),
		slog.String("expiry", ilp3.FormatExpiry(transfer.Expiry)),
		slog.String("condition", transfer.Condition),
		slog.String("destination", transfer.Destination),
		slog.String("data", ilp3.DescribeData(transfer.Data)),
	)

	endpoint, bearer, err := c.auth.Resolve(connector)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve auth")
		return nil, err
	}

	body, err := requestBody(transfer.Data, streamData)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "Client.Send")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to create request")
	}
	transfer.WriteHeaders(req.Header)
	if bearer != "" {
		req.Header.Set(ilp3.HeaderAuthorization, ilp3.BearerPrefix+bearer)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.client.Do(req)
	if err != nil {
		slog.DebugContext(ctx, "error sending transfer", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, &ilp3.TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		resp.Body.Close()
		remoteErr := &ilp3.RemoteError{
			StatusCode: resp.StatusCode,
			StatusText: statusText(resp),
		}
		span.RecordError(remoteErr)
		span.SetStatus(codes.Error, "remote")
		return nil, remoteErr
	}

	fulfillment := resp.Header.Get(ilp3.HeaderFulfillment)
	span.SetAttributes(attribute.Bool("ilp.fulfilled", fulfillment != ""))

	var data *ilp3.Data
	if streamData {
		data = ilp3.NewStreamData(resp.Body)
	} else {
		b, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			span.RecordError(err)
			return nil, &ilp3.TransportError{Err: errors.Wrap(err, "failed to read response body")}
		}
		data = ilp3.NewBufferedData(b)
	}

	slog.DebugContext(ctx, "got response",
		slog.String("fulfillment", fulfillment),
		slog.String("data", ilp3.DescribeData(data)),
	)

	return &ilp3.Result{
		Fulfillment: fulfillment,
		Data:        data,
	}, nil
}

// requestBody opens the payload. Buffered payloads are passed as a
// bytes.Reader so net/http sends a Content-Length; streams go through
// untouched and are sent chunked.
func requestBody(data *ilp3.Data, streamData bool) (io.Reader, error) {
	rc, err := data.Open()
	if err != nil {
		return nil, err
	}
	if !data.Streaming() {
		rc.Close()
		return bytes.NewReader(data.Bytes()), nil
	}
	if streamData {
		return rc, nil
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(err, "read transfer data")
	}
	return bytes.NewReader(b), nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	text = strings.TrimSpace(text)
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
