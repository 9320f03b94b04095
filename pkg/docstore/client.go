// Package docstore is the client of the BlobStash document store.
//
// Documents read through a Client are remembered as baselines in its Cache,
// so that a later Update sends an RFC 6902 patch conditioned on the
// document fingerprint instead of the full body. Queries and listings are
// returned as cursors that fetch pages lazily.
package docstore

import (
	"context"
	"net/http"

	"github.com/blobstash/blobstash.go/pkg/connection"
	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/filetree"
	"github.com/blobstash/blobstash.go/pkg/logger"
)

type Client struct {
	t        connection.Transport
	cache    *Cache
	files    filetree.Resolver
	pageSize int
	logger   logger.Logger
}

type Option func(*Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithCache shares cache between clients.
func WithCache(cache *Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithDefaultPageSize sets the page size of cursors created without
// WithPageSize.
func WithDefaultPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithResolver sets the resolver used for attachments missing from a
// response pointers block. It defaults to the file-tree node API.
func WithResolver(r filetree.Resolver) Option {
	return func(c *Client) {
		c.files = r
	}
}

func New(t connection.Transport, opts ...Option) *Client {
	c := &Client{
		t:        t,
		pageSize: constants.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = NewCache()
	}
	if c.files == nil {
		c.files = filetree.New(t)
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	if c.pageSize <= 0 {
		c.pageSize = constants.DefaultPageSize
	}
	return c
}

func (c *Client) Collection(name string) *Collection {
	return &Collection{client: c, name: name}
}

// Collections lists the collections holding at least one document.
func (c *Client) Collections(ctx context.Context) ([]*Collection, error) {
	body, err := c.t.Request(ctx, connection.NewRequest(http.MethodGet, "/api/docstore/"))
	if err != nil {
		return nil, err
	}
	var resp collectionsResponse
	if err := connection.Unmarshal(c.t, body, &resp); err != nil {
		return nil, err
	}

	cols := make([]*Collection, 0, len(resp.Collections))
	for _, name := range resp.Collections {
		cols = append(cols, c.Collection(name))
	}
	return cols, nil
}

func (c *Client) Cache() *Cache {
	return c.cache
}

// ClearCache drops every baseline; the next update of each document
// replaces it whole.
func (c *Client) ClearCache() {
	c.cache.Clear()
}
