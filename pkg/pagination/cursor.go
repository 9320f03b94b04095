// Package pagination implements the cursor protocol shared by every BlobStash
// listing and query endpoint.
//
// A Cursor is a pull-based, single-goroutine generator: Next returns buffered
// items and fetches the next page through a FetchFunc only when the buffer is
// empty and the server reported more results. The sequence is finite and not
// restartable; once Next returned ErrExhausted it keeps doing so.
package pagination

import (
	"context"
	"errors"
	"iter"

	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/logger"
)

// ErrExhausted is returned by Next at the end of the sequence.
var ErrExhausted = constants.ErrExhausted

// Page is one decoded response of a paginated endpoint.
type Page[T any] struct {
	Items   []T
	HasMore bool
	Cursor  string
	// Count is the number of items the server reported for this page.
	Count int
}

// FetchFunc fetches the page starting at cursor (empty for the first page).
type FetchFunc[T any] func(ctx context.Context, cursor string, pageSize int) (*Page[T], error)

type Cursor[T any] struct {
	fetch FetchFunc[T]

	token    string
	hasMore  bool
	pageSize int
	limit    int
	items    []T
	returned int
	count    int
	done     bool

	logger logger.Logger
}

type Option func(*options)

type options struct {
	limit    int
	pageSize int
	cursor   string
	logger   logger.Logger
}

// WithLimit caps the total number of items returned. Zero means no limit.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// WithPageSize sets the per-request limit sent to the server.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithCursor resumes iteration from a token returned by an earlier cursor.
func WithCursor(token string) Option {
	return func(o *options) {
		o.cursor = token
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func New[T any](fetch FetchFunc[T], opts ...Option) *Cursor[T] {
	o := options{pageSize: constants.DefaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Nop()
	}
	if o.pageSize <= 0 {
		o.pageSize = constants.DefaultPageSize
	}
	return &Cursor[T]{
		fetch:    fetch,
		token:    o.cursor,
		hasMore:  true,
		pageSize: o.pageSize,
		limit:    o.limit,
		logger:   o.logger,
	}
}

// Next returns the next item, ErrExhausted at the end of the sequence, or the
// error of the page fetch it triggered. A failed fetch can be retried by
// calling Next again.
func (c *Cursor[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		if c.done || (c.limit > 0 && c.returned >= c.limit) {
			c.done = true
			return zero, ErrExhausted
		}

		if len(c.items) > 0 {
			item := c.items[0]
			c.items[0] = zero
			c.items = c.items[1:]
			c.returned++
			return item, nil
		}

		if !c.hasMore {
			c.done = true
			return zero, ErrExhausted
		}

		if err := c.fetchPage(ctx); err != nil {
			return zero, err
		}
	}
}

func (c *Cursor[T]) fetchPage(ctx context.Context) error {
	page, err := c.fetch(ctx, c.token, c.pageSize)
	if err != nil {
		return err
	}
	if page == nil {
		page = &Page[T]{}
	}

	previous := c.token
	c.items = page.Items
	c.count = page.Count
	c.hasMore = page.HasMore
	c.token = page.Cursor
	// The server's "more" signal is not trusted without a usable token.
	if c.hasMore && (c.token == "" || c.token == "0") {
		c.hasMore = false
	}
	// An empty page that does not move the cursor would loop forever.
	if c.hasMore && len(page.Items) == 0 && c.token == previous {
		c.hasMore = false
	}

	c.logger.Debug("fetched page",
		"items", len(page.Items),
		"has_more", c.hasMore,
		"returned", c.returned,
	)
	return nil
}

// All drains the cursor.
func (c *Cursor[T]) All(ctx context.Context) ([]T, error) {
	var all []T
	for {
		item, err := c.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			return all, nil
		}
		if err != nil {
			return all, err
		}
		all = append(all, item)
	}
}

// Seq adapts the cursor to range-over-func. Iteration stops after the first
// error, which is yielded with the zero item.
func (c *Cursor[T]) Seq(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, err := c.Next(ctx)
			if errors.Is(err, ErrExhausted) {
				return
			}
			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}

// Returned is the number of items handed out so far.
func (c *Cursor[T]) Returned() int {
	return c.returned
}

// Count is the item count the server reported for the last fetched page.
func (c *Cursor[T]) Count() int {
	return c.count
}

// Token is the continuation token of the last fetched page.
func (c *Cursor[T]) Token() string {
	return c.token
}

// Exhausted reports whether Next will only return ErrExhausted from now on.
func (c *Cursor[T]) Exhausted() bool {
	return c.done
}
