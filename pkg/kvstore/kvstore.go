// Package kvstore is the client of the BlobStash versioned key-value store.
package kvstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/blobstash/blobstash.go/pkg/connection"
	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/logger"
	"github.com/blobstash/blobstash.go/pkg/pagination"
)

// KeyValue is one version of a key. Data travels base64 encoded.
type KeyValue struct {
	Key     string `json:"key"`
	Version int64  `json:"version"`
	Data    []byte `json:"data,omitempty"`
	Hash    string `json:"hash,omitempty"`
}

// Equal compares key and version.
func (kv *KeyValue) Equal(other *KeyValue) bool {
	if kv == nil || other == nil {
		return kv == other
	}
	return kv.Key == other.Key && kv.Version == other.Version
}

func (kv *KeyValue) String() string {
	return fmt.Sprintf("KeyValue(key=%q, version=%d)", kv.Key, kv.Version)
}

type Client struct {
	t      connection.Transport
	logger logger.Logger
}

func New(t connection.Transport, l logger.Logger) *Client {
	if l == nil {
		l = logger.Nop()
	}
	return &Client{t: t, logger: l}
}

type PutOption func(url.Values)

// WithVersion sets an explicit version; by default the server assigns one.
func WithVersion(v int64) PutOption {
	return func(form url.Values) {
		form.Set("version", strconv.FormatInt(v, 10))
	}
}

// WithRef stores a blob reference alongside the value.
func WithRef(ref string) PutOption {
	return func(form url.Values) {
		form.Set("ref", ref)
	}
}

func keyPath(key string) string {
	return "/api/kvstore/key/" + url.PathEscape(key)
}

// Put stores a new version of key.
func (c *Client) Put(ctx context.Context, key string, data []byte, opts ...PutOption) (*KeyValue, error) {
	form := url.Values{}
	form.Set("data", string(data))
	form.Set("ref", "")
	form.Set("version", "-1")
	for _, opt := range opts {
		opt(form)
	}

	req := connection.NewRequest(http.MethodPost, keyPath(key)).
		WithBody(constants.ContentTypeForm, []byte(form.Encode()))
	body, err := c.t.Request(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.decodeKeyValue(body)
}

// Get returns the latest version of key, or an error wrapping
// constants.ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) (*KeyValue, error) {
	body, err := c.t.Request(ctx, connection.NewRequest(http.MethodGet, keyPath(key)))
	if err != nil {
		return nil, err
	}
	return c.decodeKeyValue(body)
}

// Versions returns a cursor over the versions of key, newest first.
func (c *Client) Versions(_ context.Context, key string, opts ...pagination.Option) *pagination.Cursor[*KeyValue] {
	return c.cursor(keyPath(key)+"/_versions", opts)
}

// Keys returns a cursor over the latest version of every key.
func (c *Client) Keys(_ context.Context, opts ...pagination.Option) *pagination.Cursor[*KeyValue] {
	return c.cursor("/api/kvstore/keys", opts)
}

type listResponse struct {
	Data       []*KeyValue `json:"data"`
	Pagination struct {
		HasMore bool   `json:"has_more"`
		Cursor  string `json:"cursor"`
		Count   int    `json:"count"`
	} `json:"pagination"`
}

func (c *Client) cursor(path string, opts []pagination.Option) *pagination.Cursor[*KeyValue] {
	fetch := func(ctx context.Context, cursor string, pageSize int) (*pagination.Page[*KeyValue], error) {
		params := url.Values{}
		params.Set("cursor", cursor)
		params.Set("limit", strconv.Itoa(pageSize))

		body, err := c.t.Request(ctx, connection.NewRequest(http.MethodGet, path).WithParams(params))
		if err != nil {
			return nil, err
		}
		var resp listResponse
		if err := connection.Unmarshal(c.t, body, &resp); err != nil {
			return nil, err
		}
		c.logger.Debug("kvstore: fetched page", "path", path, "items", len(resp.Data), "has_more", resp.Pagination.HasMore)
		return &pagination.Page[*KeyValue]{
			Items:   resp.Data,
			HasMore: resp.Pagination.HasMore,
			Cursor:  resp.Pagination.Cursor,
			Count:   resp.Pagination.Count,
		}, nil
	}
	return pagination.New(fetch, append([]pagination.Option{pagination.WithLogger(c.logger)}, opts...)...)
}

func (c *Client) decodeKeyValue(body []byte) (*KeyValue, error) {
	var kv KeyValue
	if err := connection.Unmarshal(c.t, body, &kv); err != nil {
		return nil, err
	}
	return &kv, nil
}
