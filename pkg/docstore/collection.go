package docstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/blobstash/blobstash.go/pkg/connection"
	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/filetree"
	"github.com/blobstash/blobstash.go/pkg/models"
	"github.com/blobstash/blobstash.go/pkg/pagination"
	"github.com/blobstash/blobstash.go/pkg/query"
)

// DocumentCursor iterates over query results or document versions.
type DocumentCursor = pagination.Cursor[*Document]

type Collection struct {
	client *Client
	name   string
}

func (col *Collection) Name() string {
	return col.name
}

func (col *Collection) String() string {
	return "Collection(" + col.name + ")"
}

func (col *Collection) path() string {
	return "/api/docstore/" + url.PathEscape(col.name)
}

func (col *Collection) docPath(id string) string {
	return col.path() + "/" + url.PathEscape(id)
}

// Insert stores body as a new document.
func (col *Collection) Insert(ctx context.Context, body *models.Object) (*Document, error) {
	if body == nil {
		return nil, fmt.Errorf("%w: nil document", constants.ErrInvalidRecord)
	}

	req := connection.NewRequest(http.MethodPost, col.path()).WithJSON(body)
	resp, err := col.client.t.Request(ctx, req)
	if err != nil {
		return nil, err
	}

	id, err := col.identity(resp)
	if err != nil {
		return nil, err
	}

	doc := col.document(id, body, nil)
	col.client.cache.Store(id.ID, body)
	col.client.logger.Debug("docstore: inserted", "collection", col.name, "id", id.ID)
	return doc, nil
}

// Save inserts doc when it has no id yet and updates it otherwise.
func (col *Collection) Save(ctx context.Context, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", constants.ErrInvalidRecord)
	}
	if doc.ID != "" {
		return col.Update(ctx, doc)
	}

	inserted, err := col.Insert(ctx, doc.Body)
	if err != nil {
		return err
	}
	doc.Identity = inserted.Identity
	doc.attachments = inserted.attachments
	return nil
}

// Update writes doc conditioned on its fingerprint. A document with a cached
// baseline is sent as a patch, any other as a full replacement. A fingerprint
// mismatch fails with an error wrapping constants.ErrConflict; the baseline
// is not restored and the next update replaces the document.
func (col *Collection) Update(ctx context.Context, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", constants.ErrInvalidRecord)
	}
	if doc.ID == "" {
		return constants.ErrMissingIdentity
	}

	intent, err := col.client.cache.PrepareUpdate(doc.ID, doc.Fingerprint, doc.Body)
	if err != nil {
		return err
	}

	var req *connection.Request
	switch intent.Kind {
	case IntentPatch:
		ops, err := intent.Ops.MarshalJSON()
		if err != nil {
			return err
		}
		req = connection.NewRequest(http.MethodPatch, col.docPath(doc.ID)).
			WithBody(constants.ContentTypeJSONPatch, ops)
		col.client.logger.Debug("docstore: patching", "collection", col.name, "id", doc.ID, "ops", len(intent.Ops))
	default:
		req = connection.NewRequest(http.MethodPost, col.docPath(doc.ID)).WithJSON(intent.Body)
		col.client.logger.Debug("docstore: replacing", "collection", col.name, "id", doc.ID)
	}
	req.SetHeader(constants.HeaderIfMatch, intent.Fingerprint)

	resp, err := col.client.t.Request(ctx, req)
	if err != nil {
		if connection.HasStatus(err, http.StatusPreconditionFailed) {
			col.client.logger.Warn("docstore: update conflict", "collection", col.name, "id", doc.ID, "fingerprint", intent.Fingerprint)
			return fmt.Errorf("%w: %s/%s at %q: %w", constants.ErrConflict, col.name, doc.ID, intent.Fingerprint, err)
		}
		return err
	}

	id, err := col.identity(resp)
	if err != nil {
		return err
	}
	refresh(&doc.Identity, id)
	if doc.attachments == nil {
		doc.attachments = &filetree.Pointers{Fallback: col.client.files}
	}
	col.client.cache.Store(doc.ID, doc.Body)
	return nil
}

// GetByID fetches a document. A missing document yields an error wrapping
// constants.ErrNotFound.
func (col *Collection) GetByID(ctx context.Context, id string) (*Document, error) {
	if id == "" {
		return nil, constants.ErrMissingIdentity
	}

	body, err := col.client.t.Request(ctx, connection.NewRequest(http.MethodGet, col.docPath(id)))
	if err != nil {
		return nil, err
	}

	var resp getResponse
	if err := connection.Unmarshal(col.client.t, body, &resp); err != nil {
		return nil, err
	}
	raw, err := models.ParseObject(resp.Data)
	if err != nil {
		return nil, err
	}

	doc := col.extract(raw, resp.Pointers)
	if doc.ID == "" {
		doc.ID = id
	}
	col.client.cache.Store(doc.ID, doc.Body)
	return doc, nil
}

type QueryOption func(*queryOptions)

type queryOptions struct {
	limit    int
	pageSize int
	cursor   string
	asOf     time.Time
}

// WithLimit caps the number of documents a cursor returns.
func WithLimit(n int) QueryOption {
	return func(o *queryOptions) {
		o.limit = n
	}
}

func WithPageSize(n int) QueryOption {
	return func(o *queryOptions) {
		o.pageSize = n
	}
}

// WithCursor resumes from a token returned by DocumentCursor.Token.
func WithCursor(token string) QueryOption {
	return func(o *queryOptions) {
		o.cursor = token
	}
}

// WithAsOf queries the collection as it was at t.
func WithAsOf(t time.Time) QueryOption {
	return func(o *queryOptions) {
		o.asOf = t
	}
}

func (col *Collection) cursorOptions(opts []QueryOption) (queryOptions, []pagination.Option) {
	o := queryOptions{pageSize: col.client.pageSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit > 0 && o.limit < o.pageSize {
		o.pageSize = o.limit
	}
	return o, []pagination.Option{
		pagination.WithLimit(o.limit),
		pagination.WithPageSize(o.pageSize),
		pagination.WithCursor(o.cursor),
		pagination.WithLogger(col.client.logger),
	}
}

// Query returns a cursor over the documents matching q. An invalid q is
// reported by the first call to Next.
func (col *Collection) Query(ctx context.Context, q query.Expr, opts ...QueryOption) *DocumentCursor {
	o, cursorOpts := col.cursorOptions(opts)
	params, compileErr := query.Compile(q)

	fetch := func(ctx context.Context, cursor string, pageSize int) (*pagination.Page[*Document], error) {
		if compileErr != nil {
			return nil, compileErr
		}
		req := connection.NewRequest(http.MethodGet, col.path()).
			WithParams(params.Values(o.asOf, cursor, pageSize))
		return col.fetchPage(ctx, req, true)
	}
	return pagination.New(fetch, cursorOpts...)
}

// List returns a cursor over every document of the collection.
func (col *Collection) List(ctx context.Context, opts ...QueryOption) *DocumentCursor {
	return col.Query(ctx, query.All(), opts...)
}

// Get returns the first document matching q, or an error wrapping
// constants.ErrNotFound.
func (col *Collection) Get(ctx context.Context, q query.Expr) (*Document, error) {
	doc, err := col.Query(ctx, q, WithLimit(1)).Next(ctx)
	if errors.Is(err, pagination.ErrExhausted) {
		return nil, fmt.Errorf("%w: no document in %s matches %s", constants.ErrNotFound, col.name, q)
	}
	return doc, err
}

// Versions returns a cursor over the past versions of a document. Versions
// are not remembered as baselines.
func (col *Collection) Versions(ctx context.Context, id string, opts ...QueryOption) *DocumentCursor {
	_, cursorOpts := col.cursorOptions(opts)

	fetch := func(ctx context.Context, cursor string, pageSize int) (*pagination.Page[*Document], error) {
		if id == "" {
			return nil, constants.ErrMissingIdentity
		}
		params := url.Values{}
		params.Set("cursor", cursor)
		params.Set("limit", strconv.Itoa(pageSize))
		req := connection.NewRequest(http.MethodGet, col.docPath(id)+"/_versions").WithParams(params)
		return col.fetchPage(ctx, req, false)
	}
	return pagination.New(fetch, cursorOpts...)
}

// Delete removes documents by id and forgets their baselines.
func (col *Collection) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if id == "" {
			return constants.ErrMissingIdentity
		}
		if _, err := col.client.t.Request(ctx, connection.NewRequest(http.MethodDelete, col.docPath(id))); err != nil {
			return err
		}
		col.client.cache.Evict(id)
		col.client.logger.Debug("docstore: deleted", "collection", col.name, "id", id)
	}
	return nil
}

func (col *Collection) fetchPage(ctx context.Context, req *connection.Request, cache bool) (*pagination.Page[*Document], error) {
	body, err := col.client.t.Request(ctx, req)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := connection.Unmarshal(col.client.t, body, &resp); err != nil {
		return nil, err
	}
	records, err := parseRecords(resp.Data)
	if err != nil {
		return nil, err
	}

	resolver := &filetree.Pointers{Nodes: resp.Pointers, Fallback: col.client.files}
	docs := make([]*Document, 0, len(records))
	for _, raw := range records {
		doc := col.extractWith(raw, resolver)
		if cache {
			col.client.cache.Store(doc.ID, doc.Body)
		}
		docs = append(docs, doc)
	}

	col.client.logger.Debug("docstore: fetched page", "collection", col.name, "path", req.Path,
		"items", len(docs), "has_more", resp.Pagination.HasMore, "cursor", resp.Pagination.Cursor)

	return &pagination.Page[*Document]{
		Items:   docs,
		HasMore: resp.Pagination.HasMore,
		Cursor:  resp.Pagination.Cursor,
		Count:   resp.Pagination.Count,
	}, nil
}

// identity decodes the identity record returned by writes.
func (col *Collection) identity(resp []byte) (Identity, error) {
	raw, err := models.ParseObject(resp)
	if err != nil {
		return Identity{}, err
	}
	_, id, tsErr := extract(raw)
	if tsErr != nil {
		col.client.logger.Warn("docstore: bad timestamp", "collection", col.name, "id", id.ID, "error", tsErr)
	}
	if id.ID == "" {
		return Identity{}, fmt.Errorf("%w: write response without %s", constants.ErrInvalidResponse, KeyID)
	}
	return id, nil
}

func (col *Collection) extract(raw *models.Object, pointers map[string]json.RawMessage) *Document {
	return col.extractWith(raw, &filetree.Pointers{Nodes: pointers, Fallback: col.client.files})
}

func (col *Collection) extractWith(raw *models.Object, resolver filetree.Resolver) *Document {
	body, id, tsErr := extract(raw)
	if tsErr != nil {
		col.client.logger.Warn("docstore: bad timestamp", "collection", col.name, "id", id.ID, "error", tsErr)
	}
	return col.document(id, body, resolver)
}

func (col *Collection) document(id Identity, body *models.Object, resolver filetree.Resolver) *Document {
	if resolver == nil {
		resolver = &filetree.Pointers{Fallback: col.client.files}
	}
	return &Document{Identity: id, Body: body, attachments: resolver}
}

// refresh copies the fields the server returned into dst.
func refresh(dst *Identity, src Identity) {
	dst.ID = src.ID
	dst.Fingerprint = src.Fingerprint
	if src.Created != nil {
		dst.Created = src.Created
	}
	if src.Updated != nil {
		dst.Updated = src.Updated
	}
}
