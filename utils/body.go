package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	// DefaultBodyReadTimeout bounds how long a request may take to deliver its first byte
	DefaultBodyReadTimeout = 5 * time.Second

	// DefaultBodyMaxBytes caps the size of a request body
	DefaultBodyMaxBytes int64 = 1 << 20
)

// Body reader failure kinds. Every DecodeJSON call returns nil or
// a *BodyError wrapping exactly one of these.
var (
	ErrEmptyBody     = errors.New("request body is empty")
	ErrMalformedBody = errors.New("invalid JSON in request body")
	ErrBodyStream    = errors.New("error reading request body")
	ErrBodyTimeout   = errors.New("request timed out")
)

var bodyMessages = map[error]string{
	ErrEmptyBody:     "Request body is empty",
	ErrMalformedBody: "Invalid JSON in request body",
	ErrBodyStream:    "Error reading request body",
	ErrBodyTimeout:   "Request timed out",
}

// BodyError describes why a request body could not be read
type BodyError struct {
	Kind error
	Err  error
}

// Error implements the error interface
func (e *BodyError) Error() string {
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Kind.Error()
}

// Unwrap returns the failure kind
func (e *BodyError) Unwrap() error {
	return e.Kind
}

// Message is the client facing description of the failure
func (e *BodyError) Message() string {
	if msg, ok := bodyMessages[e.Kind]; ok {
		return msg
	}
	return bodyMessages[ErrBodyStream]
}

// BodyReader reads and decodes JSON request bodies with a first-byte deadline
type BodyReader struct {
	timeout  time.Duration
	maxBytes int64
}

// NewBodyReader creates a BodyReader. Non-positive values select the defaults.
func NewBodyReader(timeout time.Duration, maxBytes int64) *BodyReader {
	if timeout <= 0 {
		timeout = DefaultBodyReadTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultBodyMaxBytes
	}
	return &BodyReader{
		timeout:  timeout,
		maxBytes: maxBytes,
	}
}

type readResult struct {
	data []byte
	err  error
}

// countingReader counts bytes as they arrive so the deadline can tell
// a silent client from a slow one
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// Read returns the raw request body.
//
// The body is read by a single goroutine. If no byte has arrived when the
// deadline fires the connection read deadline is moved to now and the read
// fails with ErrBodyTimeout. Once data is flowing the reader waits for the end
// of the stream, bounded by the server read timeout.
func (b *BodyReader) Read(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, &BodyError{Kind: ErrEmptyBody}
	}

	counter := &countingReader{r: http.MaxBytesReader(w, r.Body, b.maxBytes)}
	done := make(chan readResult, 1)

	go func() {
		data, err := io.ReadAll(counter)
		done <- readResult{data: data, err: err}
	}()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	deadline := timer.C
	for {
		select {
		case res := <-done:
			if res.err != nil {
				return nil, &BodyError{Kind: ErrBodyStream, Err: res.err}
			}
			if len(bytes.TrimSpace(res.data)) == 0 {
				return nil, &BodyError{Kind: ErrEmptyBody}
			}
			return res.data, nil
		case <-deadline:
			if counter.n.Load() == 0 {
				abortRead(w, r, done)
				return nil, &BodyError{Kind: ErrBodyTimeout}
			}
			deadline = nil
		case <-r.Context().Done():
			abortRead(w, r, done)
			return nil, &BodyError{Kind: ErrBodyStream, Err: r.Context().Err()}
		}
	}
}

// abortRead unblocks the reading goroutine and waits for it to exit, so
// neither the body nor w is touched after Read returns. Writers without
// read deadline support get their body closed instead.
func abortRead(w http.ResponseWriter, r *http.Request, done <-chan readResult) {
	if err := http.NewResponseController(w).SetReadDeadline(time.Now()); err != nil {
		_ = r.Body.Close()
	}
	<-done
}

// DecodeJSON reads the request body and unmarshals it into dst
func (b *BodyReader) DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	data, err := b.Read(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &BodyError{Kind: ErrMalformedBody, Err: err}
	}
	return nil
}
