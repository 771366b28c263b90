package ilp3

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const expiryLayout = "2006-01-02T15:04:05.000Z"

func FormatAmount(amount uint64) string {
	return strconv.FormatUint(amount, 10)
}

func ParseAmount(s string) (uint64, error) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, &ProtocolShapeError{Header: HeaderAmount, Reason: "is not a non-negative decimal integer"}
	}
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, &ProtocolShapeError{Header: HeaderAmount, Reason: "is out of range"}
	}
	return amount, nil
}

// FormatExpiry renders t the way the reference sender does: UTC with
// millisecond precision.
func FormatExpiry(t time.Time) string {
	return t.UTC().Format(expiryLayout)
}

func ParseExpiry(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, &ProtocolShapeError{Header: HeaderExpiry, Reason: "is not an ISO-8601 timestamp"}
	}
	return t.UTC(), nil
}

// WriteHeaders sets the fixed ILP headers, then applies AdditionalHeaders
// on top of them.
func (t *Transfer) WriteHeaders(h http.Header) {
	h.Set(HeaderAmount, FormatAmount(t.Amount))
	h.Set(HeaderExpiry, FormatExpiry(t.Expiry))
	h.Set(HeaderCondition, t.Condition)
	h.Set(HeaderDestination, t.Destination)
	h.Set(HeaderContentType, ContentTypeOctetStream)
	for name, values := range t.AdditionalHeaders {
		h.Del(name)
		for _, v := range values {
			h.Add(name, v)
		}
	}
}

// ReadTransfer rebuilds a transfer from request headers and its body.
func ReadTransfer(h http.Header, data *Data) (*Transfer, error) {
	for _, name := range []string{HeaderAmount, HeaderExpiry, HeaderCondition, HeaderDestination} {
		if h.Get(name) == "" {
			return nil, &ProtocolShapeError{Header: name, Reason: "is missing"}
		}
	}

	amount, err := ParseAmount(h.Get(HeaderAmount))
	if err != nil {
		return nil, err
	}
	expiry, err := ParseExpiry(h.Get(HeaderExpiry))
	if err != nil {
		return nil, err
	}

	if data == nil {
		data = NewBufferedData(nil)
	}

	return &Transfer{
		Amount:      amount,
		Expiry:      expiry,
		Condition:   h.Get(HeaderCondition),
		Destination: h.Get(HeaderDestination),
		Data:        data,
	}, nil
}

// DescribeData renders a payload for debug logs without consuming it.
func DescribeData(d *Data) string {
	if d.Streaming() {
		return "[Stream]"
	}
	return base64.StdEncoding.EncodeToString(d.Bytes())
}
