package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/filetree"
	"github.com/blobstash/blobstash.go/pkg/models"
)

// Document is a record body with its identity. Body never holds the
// reserved identity keys.
type Document struct {
	Identity
	Body *models.Object

	attachments filetree.Resolver
}

// NewDocument wraps body as a document that has not been saved yet.
func NewDocument(body *models.Object) *Document {
	if body == nil {
		body = models.NewObject()
	}
	return &Document{Body: body}
}

// Get returns the top-level field key.
func (d *Document) Get(key string) (models.Value, bool) {
	return d.Body.Get(key)
}

// Set sets the top-level field key.
func (d *Document) Set(key string, v models.Value) *Document {
	d.Body.Set(key, v)
	return d
}

// Attachment resolves the attachment pointer stored at field. Nested object
// fields are addressed with dots, e.g. "meta.cover".
func (d *Document) Attachment(ctx context.Context, field string) (*filetree.Attachment, error) {
	v, ok := d.lookup(field)
	if !ok {
		return nil, fmt.Errorf("%w: field %q", constants.ErrNotFound, field)
	}
	pointer, ok := v.AsPointer()
	if !ok {
		return nil, fmt.Errorf("%w: field %q holds %s", constants.ErrNotAnAttachment, field, v.Kind())
	}
	if d.attachments == nil {
		return nil, fmt.Errorf("%w: no resolver for %s", constants.ErrNotFound, pointer)
	}
	return d.attachments.Resolve(ctx, pointer)
}

// Pointers returns the attachment pointers found in the body, depth first.
func (d *Document) Pointers() []string {
	var out []string
	collectPointers(models.ObjectValue(d.Body), &out)
	return out
}

func (d *Document) lookup(field string) (models.Value, bool) {
	obj := d.Body
	parts := strings.Split(field, ".")
	for i, part := range parts {
		v, ok := obj.Get(part)
		if !ok {
			return models.Null(), false
		}
		if i == len(parts)-1 {
			return v, true
		}
		if obj, ok = v.AsObject(); !ok {
			return models.Null(), false
		}
	}
	return models.Null(), false
}

func collectPointers(v models.Value, out *[]string) {
	if p, ok := v.AsPointer(); ok {
		*out = append(*out, p)
		return
	}
	if l, ok := v.AsList(); ok {
		for _, item := range l {
			collectPointers(item, out)
		}
		return
	}
	if o, ok := v.AsObject(); ok {
		o.Range(func(_ string, item models.Value) bool {
			collectPointers(item, out)
			return true
		})
	}
}

func (d *Document) MarshalJSON() ([]byte, error) {
	return d.Body.MarshalJSON()
}

func (d *Document) String() string {
	return fmt.Sprintf("Document(id=%q, body=%s)", d.ID, d.Body)
}
