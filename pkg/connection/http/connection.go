// Package http implements connection.Transport over net/http.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blobstash/blobstash.go/internal/codec"
	"github.com/blobstash/blobstash.go/internal/rand"
	"github.com/blobstash/blobstash.go/pkg/connection"
	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/logger"
)

// maxErrorBody bounds how much of a failed response is kept in TransportError.
const maxErrorBody = 512

type Connection struct {
	BaseURL     string
	APIKey      string
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler

	httpClient *http.Client
	logger     logger.Logger
}

func New(p *connection.Config) *Connection {
	con := Connection{
		BaseURL:    strings.TrimSuffix(p.BaseURL, "/"),
		APIKey:     p.APIKey,
		Marshaler:   p.Marshaler,
		Unmarshaler: p.Unmarshaler,
		httpClient:  p.HTTPClient,
		logger:      p.Logger,
	}

	if con.httpClient == nil {
		timeout := p.Timeout
		if timeout == 0 {
			timeout = constants.DefaultHTTPTimeout
		}
		con.httpClient = &http.Client{
			Timeout: timeout, // Set a default timeout to avoid hanging requests
		}
	}
	if con.Marshaler == nil {
		con.Marshaler = codec.NewJSON()
	}
	if con.Unmarshaler == nil {
		con.Unmarshaler = codec.NewJSON()
	}
	if con.logger == nil {
		con.logger = logger.Nop()
	}

	return &con
}

// GetUnmarshaler implements connection.Decoder.
func (c *Connection) GetUnmarshaler() codec.Unmarshaler {
	return c.Unmarshaler
}

func (c *Connection) SetTimeout(timeout time.Duration) *Connection {
	c.httpClient.Timeout = timeout
	return c
}

func (c *Connection) SetHTTPClient(client *http.Client) *Connection {
	c.httpClient = client
	return c
}

// Request implements connection.Transport.
func (c *Connection) Request(ctx context.Context, r *connection.Request) ([]byte, error) {
	if c.BaseURL == "" {
		return nil, constants.ErrNoBaseURL
	}

	body, contentType, err := c.encodeBody(r)
	if err != nil {
		return nil, err
	}

	u := c.BaseURL + r.Path
	if len(r.Params) > 0 {
		u += "?" + r.Params.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, u, reader)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", constants.ContentTypeJSON)
	if c.APIKey != "" {
		req.SetBasicAuth("", c.APIKey)
	}
	requestID := rand.NewRequestID(constants.RequestIDLength)
	req.Header.Set(constants.HeaderRequestID, requestID)

	return c.MakeRequest(req)
}

func (c *Connection) encodeBody(r *connection.Request) ([]byte, string, error) {
	if r.Body != nil {
		return r.Body, r.ContentType, nil
	}
	if r.JSON == nil {
		return nil, "", nil
	}
	if c.Marshaler == nil {
		return nil, "", constants.ErrNoMarshaler
	}
	data, err := c.Marshaler.Marshal(r.JSON)
	if err != nil {
		return nil, "", fmt.Errorf("encoding %s %s body: %w", r.Method, r.Path, err)
	}
	contentType := r.ContentType
	if contentType == "" {
		contentType = constants.ContentTypeJSON
	}
	return data, contentType, nil
}

// MakeRequest executes req and maps the response status.
func (c *Connection) MakeRequest(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, &connection.TransportError{Method: req.Method, Path: req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get(constants.HeaderRequestID),
		"elapsed", time.Since(start),
	)

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &connection.TransportError{StatusCode: resp.StatusCode, Method: req.Method, Path: req.URL.Path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBytes, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", constants.ErrNotFound, req.Method, req.URL.Path)
	}

	if len(respBytes) > maxErrorBody {
		respBytes = respBytes[:maxErrorBody]
	}
	return nil, &connection.TransportError{
		StatusCode: resp.StatusCode,
		Method:     req.Method,
		Path:       req.URL.Path,
		Body:       strings.TrimSpace(string(respBytes)),
	}
}
