// Package resource implements the offline asset cache: a generation-scoped
// response store and an http.RoundTripper that applies per-origin caching
// strategy with whole-generation garbage collection.
package resource

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

// Common errors for the resource cache.
var (
	// ErrNoMatch is returned when a request key has no stored response in
	// the generation.
	ErrNoMatch = errors.New("no cached response")

	// ErrCorruptEntry is returned when a stored response cannot be decoded.
	ErrCorruptEntry = errors.New("cached response corrupted")

	// ErrInstall is returned when precaching the essential-asset manifest
	// fails. The install is all-or-nothing.
	ErrInstall = errors.New("manifest install failed")
)

// Response is the stored form of an upstream HTTP response. Entries are
// written atomically as a unit.
type Response struct {
	StatusCode int                 `msgpack:"status"`
	Header     map[string][]string `msgpack:"header"`
	Body       []byte              `msgpack:"body"`
}

// httpResponse materializes the stored response for a requester.
func (r *Response) httpResponse(req *http.Request) *http.Response {
	header := make(http.Header, len(r.Header))
	for k, v := range r.Header {
		header[k] = v
	}
	return &http.Response{
		StatusCode:    r.StatusCode,
		Status:        http.StatusText(r.StatusCode),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

// captureResponse drains an upstream response into its stored form and
// replaces the consumed body so the response can still be returned to the
// caller.
func captureResponse(resp *http.Response) (*Response, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Store is generation-scoped, request-keyed response storage. Exactly one
// generation is current at any time; stale generations persist until
// Activate deletes them. Implementations must support concurrent reads and
// writes.
type Store interface {
	// Open ensures a generation exists and is writable.
	Open(generation string) error

	// Match returns the stored response for key in generation, or ErrNoMatch.
	Match(generation, key string) (*Response, error)

	// Put stores resp under key in generation, replacing any existing entry.
	Put(generation, key string, resp *Response) error

	// Delete removes an entire generation and all of its entries.
	Delete(generation string) error

	// ListGenerations enumerates every stored generation name.
	ListGenerations() ([]string, error)
}
