package receiver

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/ilp3"
	"github.com/totegamma/ilp3/internal/clock"
	"github.com/totegamma/ilp3/token"
)

// --- helpers ---

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type recordingSettler struct {
	called   bool
	account  string
	transfer *ilp3.Transfer
	body     []byte
	outcome  Outcome
	err      error
}

func (s *recordingSettler) Settle(ctx context.Context, account string, transfer *ilp3.Transfer) (Outcome, error) {
	s.called = true
	s.account = account
	s.transfer = transfer
	body, err := transfer.Data.ReadAll()
	if err != nil {
		return Outcome{}, err
	}
	s.body = body
	return s.outcome, s.err
}

func newSecret(t *testing.T) []byte {
	t.Helper()
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return secret
}

func bearerFor(t *testing.T, secret []byte, caveats ...token.Caveat) string {
	t.Helper()
	tok, err := token.Mint(secret, "acct1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	for _, c := range caveats {
		tok, err = tok.WithCaveat(c)
		if err != nil {
			t.Fatalf("WithCaveat: %v", err)
		}
	}
	encoded, err := tok.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return ilp3.BearerPrefix + encoded
}

func newServer(t *testing.T, cfg Config, settler Settler) *echo.Echo {
	t.Helper()
	if cfg.Clock == nil {
		cfg.Clock = clock.Fake(testNow)
	}
	e, err := New(cfg, settler)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func newTransferRequest(body io.Reader, auth string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", body)
	(&ilp3.Transfer{
		Amount:      1000,
		Expiry:      testNow.Add(time.Minute),
		Condition:   "0xabc",
		Destination: "dest1",
	}).WriteHeaders(req.Header)
	if auth != "" {
		req.Header.Set(ilp3.HeaderAuthorization, auth)
	}
	return req
}

// --- tests ---

func TestReceiverFulfillment(t *testing.T) {
	secret := newSecret(t)
	settler := &recordingSettler{outcome: Outcome{
		Fulfillment: "0xdef",
		Data:        ilp3.NewBufferedData([]byte("thanks")),
	}}
	e := newServer(t, Config{Secret: secret}, settler)

	req := newTransferRequest(strings.NewReader("payload"), bearerFor(t, secret, token.TimeBefore(testNow.Add(2*time.Second))))
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", res.Code, res.Body.String())
	}
	if got := res.Header().Get(ilp3.HeaderFulfillment); got != "0xdef" {
		t.Fatalf("fulfillment = %q, want 0xdef", got)
	}
	if res.Body.String() != "thanks" {
		t.Fatalf("body = %q, want thanks", res.Body.String())
	}
	if settler.account != "acct1" {
		t.Errorf("account = %q, want acct1", settler.account)
	}
	if settler.transfer.Amount != 1000 || settler.transfer.Destination != "dest1" || settler.transfer.Condition != "0xabc" {
		t.Errorf("transfer = %+v", settler.transfer)
	}
	if string(settler.body) != "payload" {
		t.Errorf("settler body = %q", settler.body)
	}
}

func TestReceiverNoFulfillment(t *testing.T) {
	secret := newSecret(t)

	settler := &recordingSettler{}
	e := newServer(t, Config{Secret: secret}, settler)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, newTransferRequest(strings.NewReader(""), bearerFor(t, secret)))

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", res.Code)
	}
	if _, ok := res.Header()[http.CanonicalHeaderKey(ilp3.HeaderFulfillment)]; ok {
		t.Fatal("response must not carry a fulfillment header")
	}

	declined := &recordingSettler{outcome: Outcome{
		Status: http.StatusUnprocessableEntity,
		Data:   ilp3.NewBufferedData([]byte("insufficient amount")),
	}}
	e = newServer(t, Config{Secret: secret}, declined)
	res = httptest.NewRecorder()
	e.ServeHTTP(res, newTransferRequest(strings.NewReader(""), bearerFor(t, secret)))

	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", res.Code)
	}
	if res.Header().Get(ilp3.HeaderFulfillment) != "" {
		t.Fatal("declined response must not carry a fulfillment header")
	}
	if res.Body.String() != "insufficient amount" {
		t.Fatalf("body = %q", res.Body.String())
	}
}

func TestReceiverRejectsBadTokens(t *testing.T) {
	secret := newSecret(t)

	cases := map[string]string{
		"missing":     "",
		"not bearer":  "Basic dXNlcjpwYXNz",
		"malformed":   "Bearer not-a-token",
		"wrong key":   bearerFor(t, newSecret(t)),
		"expired":     bearerFor(t, secret, token.TimeBefore(testNow)),
		"unsupported": bearerFor(t, secret, token.ParseCaveat("minBalance -1000000")),
	}

	for name, auth := range cases {
		t.Run(name, func(t *testing.T) {
			settler := &recordingSettler{}
			e := newServer(t, Config{Secret: secret}, settler)
			res := httptest.NewRecorder()
			e.ServeHTTP(res, newTransferRequest(strings.NewReader("x"), auth))

			if res.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 got %d", res.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != "unauthorized" {
				t.Fatalf("error body leaks detail: %q", body["error"])
			}
			if settler.called {
				t.Fatal("settler must not run on auth failure")
			}
		})
	}
}

func TestReceiverBearerSchemeIsCaseInsensitive(t *testing.T) {
	secret := newSecret(t)
	settler := &recordingSettler{}
	e := newServer(t, Config{Secret: secret}, settler)

	auth := "bearer " + strings.TrimPrefix(bearerFor(t, secret), ilp3.BearerPrefix)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, newTransferRequest(strings.NewReader(""), auth))
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", res.Code)
	}
}

func TestReceiverBodyLimit(t *testing.T) {
	secret := newSecret(t)
	payload := bytes.Repeat([]byte("a"), 65)

	for name, body := range map[string]func() io.Reader{
		"content-length": func() io.Reader { return bytes.NewReader(payload) },
		"chunked":        func() io.Reader { return io.MultiReader(bytes.NewReader(payload)) },
	} {
		t.Run(name, func(t *testing.T) {
			settler := &recordingSettler{}
			e := newServer(t, Config{Secret: secret, BodyLimit: 64}, settler)
			res := httptest.NewRecorder()
			e.ServeHTTP(res, newTransferRequest(body(), bearerFor(t, secret)))

			if res.Code != http.StatusRequestEntityTooLarge {
				t.Fatalf("expected 413 got %d", res.Code)
			}
			if settler.called {
				t.Fatal("settler must not run when the body is too large")
			}
		})
	}

	settler := &recordingSettler{}
	e := newServer(t, Config{Secret: secret, BodyLimit: 65}, settler)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, newTransferRequest(bytes.NewReader(payload), bearerFor(t, secret)))
	if res.Code != http.StatusNoContent || !settler.called {
		t.Fatalf("body at the limit: code %d, called %v", res.Code, settler.called)
	}
}

func TestReceiverMissingHeader(t *testing.T) {
	secret := newSecret(t)
	settler := &recordingSettler{}
	e := newServer(t, Config{Secret: secret}, settler)

	req := newTransferRequest(strings.NewReader(""), bearerFor(t, secret))
	req.Header.Del(ilp3.HeaderCondition)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
	if settler.called {
		t.Fatal("settler must not run on a malformed transfer")
	}
}

func TestReceiverStreamData(t *testing.T) {
	secret := newSecret(t)
	settler := &recordingSettler{outcome: Outcome{
		Fulfillment: "0xdef",
		Data:        ilp3.NewStreamData(io.NopCloser(strings.NewReader("streamed reply"))),
	}}
	e := newServer(t, Config{Secret: secret, StreamData: true, BodyLimit: 4}, settler)

	res := httptest.NewRecorder()
	e.ServeHTTP(res, newTransferRequest(strings.NewReader("longer than the buffered limit"), bearerFor(t, secret)))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.Code)
	}
	if !settler.transfer.Data.Streaming() {
		t.Fatal("expected a streamed body")
	}
	if string(settler.body) != "longer than the buffered limit" {
		t.Fatalf("settler body = %q", settler.body)
	}
	if res.Body.String() != "streamed reply" {
		t.Fatalf("response body = %q", res.Body.String())
	}
}

func TestReceiverSettlerErrors(t *testing.T) {
	secret := newSecret(t)

	settler := &recordingSettler{err: io.ErrUnexpectedEOF}
	e := newServer(t, Config{Secret: secret}, settler)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, newTransferRequest(strings.NewReader(""), bearerFor(t, secret)))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "EOF") {
		t.Fatalf("internal error leaked: %s", res.Body.String())
	}

	settler = &recordingSettler{err: echo.NewHTTPError(http.StatusPaymentRequired, "amount too low")}
	e = newServer(t, Config{Secret: secret}, settler)
	res = httptest.NewRecorder()
	e.ServeHTTP(res, newTransferRequest(strings.NewReader(""), bearerFor(t, secret)))
	if res.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", res.Code)
	}
}

func TestRegisterValidatesConfig(t *testing.T) {
	e := echo.New()
	if err := Register(e, Config{Secret: make([]byte, 16)}, &recordingSettler{}); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
	if err := Register(e, Config{Secret: newSecret(t)}, nil); err == nil {
		t.Fatal("expected nil settler to be rejected")
	}
}

func TestReceiverCustomPath(t *testing.T) {
	secret := newSecret(t)
	settler := &recordingSettler{}
	e := newServer(t, Config{Secret: secret, Path: "/ilp"}, settler)

	req := newTransferRequest(strings.NewReader(""), bearerFor(t, secret))
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on other path got %d", res.Code)
	}

	req = newTransferRequest(strings.NewReader(""), bearerFor(t, secret))
	req.URL.Path = "/ilp"
	res = httptest.NewRecorder()
	e.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", res.Code)
	}
}

func TestContextReaderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &contextReader{ctx: ctx, rc: io.NopCloser(strings.NewReader("abcdef"))}

	buf := make([]byte, 3)
	if n, err := r.Read(buf); err != nil || n != 3 {
		t.Fatalf("Read before cancel = %d, %v", n, err)
	}
	cancel()
	if _, err := r.Read(buf); err != context.Canceled {
		t.Fatalf("Read after cancel = %v, want context.Canceled", err)
	}
}
