package docstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/blobstash/blobstash.go/pkg/models"
)

// Reserved record keys carrying the server-managed identity.
const (
	KeyID      = "_id"
	KeyCreated = "_created"
	KeyUpdated = "_updated"
	KeyHash    = "_hash"
)

// Identity is the server-managed metadata of a document. Absent timestamps
// are nil.
type Identity struct {
	ID          string
	Created     *time.Time
	Updated     *time.Time
	Fingerprint string
}

// Equal compares id and fingerprint.
func (i Identity) Equal(other Identity) bool {
	return i.ID == other.ID && i.Fingerprint == other.Fingerprint
}

func (i Identity) IsZero() bool {
	return i.ID == ""
}

func (i Identity) String() string {
	return i.ID
}

// Extract removes the reserved keys from raw and returns the remaining body
// with the identity they carried. Timestamps that do not parse are left nil.
func Extract(raw *models.Object) (*models.Object, Identity) {
	body, id, _ := extract(raw)
	return body, id
}

// extract is Extract reporting timestamp parse failures.
func extract(raw *models.Object) (*models.Object, Identity, error) {
	var id Identity
	if raw == nil {
		return nil, id, nil
	}

	id.ID = text(raw, KeyID)
	id.Fingerprint = text(raw, KeyHash)

	var errs []error
	var err error
	if id.Created, err = timestamp(raw, KeyCreated); err != nil {
		errs = append(errs, err)
	}
	if id.Updated, err = timestamp(raw, KeyUpdated); err != nil {
		errs = append(errs, err)
	}

	for _, k := range []string{KeyID, KeyCreated, KeyUpdated, KeyHash} {
		raw.Delete(k)
	}
	return raw, id, errors.Join(errs...)
}

func text(o *models.Object, key string) string {
	v, ok := o.Get(key)
	if !ok {
		return ""
	}
	if s, ok := v.AsString(); ok {
		return s
	}
	if n, ok := v.AsNumber(); ok {
		return string(n)
	}
	return ""
}

func timestamp(o *models.Object, key string) (*time.Time, error) {
	s := text(o, key)
	t, err := models.ParseDateTime(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}
