// Package blobstore is the client of the BlobStash content-addressed blob
// store. Blobs are identified by the hex BLAKE2b-256 hash of their content.
package blobstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"github.com/blobstash/blobstash.go/pkg/connection"
	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/logger"
	"github.com/blobstash/blobstash.go/pkg/pagination"
)

// ErrHashMismatch is returned when blob content does not match its hash.
var ErrHashMismatch = fmt.Errorf("%w: blob content does not match its hash", constants.ErrInvalidResponse)

// Hash returns the hex BLAKE2b-256 hash of data.
func Hash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Blob is a blob reference, with its content when it was fetched or built
// locally.
type Blob struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
	Data []byte `json:"-"`
}

// NewBlob builds a blob from its content.
func NewBlob(data []byte) *Blob {
	return &Blob{Hash: Hash(data), Size: int64(len(data)), Data: data}
}

// Verify checks the content against the hash.
func (b *Blob) Verify() error {
	if Hash(b.Data) != b.Hash {
		return fmt.Errorf("%w: %s", ErrHashMismatch, b.Hash)
	}
	return nil
}

func (b *Blob) String() string {
	return "Blob(" + b.Hash + ")"
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

// Put uploads blobs in a single multipart request.
func (c *Client) Put(ctx context.Context, blobs ...*Blob) error {
	if len(blobs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, b := range blobs {
		if err := b.Verify(); err != nil {
			return err
		}
		part, err := mw.CreateFormFile(b.Hash, b.Hash)
		if err != nil {
			return err
		}
		if _, err := part.Write(b.Data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req := connection.NewRequest(http.MethodPost, "/api/blobstore/upload").
		WithBody(mw.FormDataContentType(), buf.Bytes())
	if _, err := c.t.Request(ctx, req); err != nil {
		return err
	}
	c.logger.Debug("blobstore: uploaded", "blobs", len(blobs), "bytes", buf.Len())
	return nil
}

// Get fetches a blob and verifies its content. A missing blob yields an
// error wrapping constants.ErrNotFound.
func (c *Client) Get(ctx context.Context, hash string) (*Blob, error) {
	data, err := c.t.Request(ctx, connection.NewRequest(http.MethodGet, "/api/blobstore/blob/"+url.PathEscape(hash)))
	if err != nil {
		return nil, err
	}
	b := &Blob{Hash: hash, Size: int64(len(data)), Data: data}
	if err := b.Verify(); err != nil {
		return nil, err
	}
	return b, nil
}

type listResponse struct {
	Data       []*Blob `json:"data"`
	Pagination struct {
		HasMore bool   `json:"has_more"`
		Cursor  string `json:"cursor"`
		Count   int    `json:"count"`
	} `json:"pagination"`
}

// Blobs returns a cursor over the stored blob references, without content.
func (c *Client) Blobs(_ context.Context, opts ...pagination.Option) *pagination.Cursor[*Blob] {
	fetch := func(ctx context.Context, cursor string, pageSize int) (*pagination.Page[*Blob], error) {
		params := url.Values{}
		params.Set("cursor", cursor)
		params.Set("limit", strconv.Itoa(pageSize))

		body, err := c.t.Request(ctx, connection.NewRequest(http.MethodGet, "/api/blobstore/blobs").WithParams(params))
		if err != nil {
			return nil, err
		}
		var resp listResponse
		if err := connection.Unmarshal(c.t, body, &resp); err != nil {
			return nil, err
		}
		return &pagination.Page[*Blob]{
			Items:   resp.Data,
			HasMore: resp.Pagination.HasMore,
			Cursor:  resp.Pagination.Cursor,
			Count:   resp.Pagination.Count,
		}, nil
	}
	return pagination.New(fetch, append([]pagination.Option{pagination.WithLogger(c.logger)}, opts...)...)
}
