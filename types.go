package ilp3

import (
	"bytes"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Transfer is a conditional transfer as carried by one HTTP exchange.
type Transfer struct {
	Amount      uint64
	Expiry      time.Time
	Condition   string
	Destination string
	Data        *Data

	// AdditionalHeaders are applied after the fixed ILP headers when
	// sending. Extraction never populates it.
	AdditionalHeaders http.Header
}

// Result is what the sender observes after a successful exchange.
type Result struct {
	Fulfillment string
	Data        *Data
}

// Fulfilled reports whether the receiver returned a fulfillment.
func (r *Result) Fulfilled() bool {
	return r != nil && r.Fulfillment != ""
}

var ErrDataConsumed = errors.New("data already consumed")

// Data is a transfer payload. It is either fully materialized bytes or a
// live stream, and in both cases can be opened exactly once.
type Data struct {
	buf      []byte
	stream   io.ReadCloser
	consumed atomic.Bool
}

func NewBufferedData(b []byte) *Data {
	if b == nil {
		b = []byte{}
	}
	return &Data{buf: b}
}

func NewStreamData(rc io.ReadCloser) *Data {
	return &Data{stream: rc}
}

// Streaming reports whether the payload is a live stream.
func (d *Data) Streaming() bool {
	return d != nil && d.stream != nil
}

// Bytes returns the buffered payload without consuming it. It returns nil
// for streams.
func (d *Data) Bytes() []byte {
	if d == nil {
		return []byte{}
	}
	if d.stream != nil {
		return nil
	}
	return d.buf
}

// Len is the payload size, or -1 when unknown.
func (d *Data) Len() int64 {
	if d == nil {
		return 0
	}
	if d.stream != nil {
		return -1
	}
	return int64(len(d.buf))
}

// Open hands out the payload reader. Only the first call succeeds.
func (d *Data) Open() (io.ReadCloser, error) {
	if d == nil {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if !d.consumed.CompareAndSwap(false, true) {
		return nil, ErrDataConsumed
	}
	if d.stream != nil {
		return d.stream, nil
	}
	return io.NopCloser(bytes.NewReader(d.buf)), nil
}

// ReadAll opens the payload and reads it to the end.
func (d *Data) ReadAll() ([]byte, error) {
	rc, err := d.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(err, "read data")
	}
	return b, nil
}
