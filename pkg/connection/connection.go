package connection

import (
	"context"
	"net/http"
	"net/url"
)

// Transport issues authenticated requests against the BlobStash HTTP API.
//
// Request returns the raw response body for 2xx statuses (nil for 204),
// an error wrapping constants.ErrNotFound for 404, and a *TransportError for
// any other failure. Cancellation and timeouts are handled by the implementation
// through ctx.
type Transport interface {
	Request(ctx context.Context, req *Request) ([]byte, error)
}

// Request describes a single API call.
type Request struct {
	Method string
	Path   string
	Params url.Values
	// JSON is marshaled with the transport's Marshaler when Body is nil.
	JSON any
	// Body is sent verbatim when set.
	Body        []byte
	ContentType string
	Header      http.Header
}

// NewRequest creates a request without a body.
func NewRequest(method, path string) *Request {
	return &Request{Method: method, Path: path}
}

func (r *Request) WithParams(params url.Values) *Request {
	r.Params = params
	return r
}

func (r *Request) WithJSON(v any) *Request {
	r.JSON = v
	return r
}

func (r *Request) WithBody(contentType string, body []byte) *Request {
	r.ContentType = contentType
	r.Body = body
	return r
}

// SetHeader sets a header, skipping empty values.
func (r *Request) SetHeader(key, value string) *Request {
	if value == "" {
		return r
	}
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
	return r
}
