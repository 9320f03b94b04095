package constants

import "errors"

// Errors
var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("precondition failed: fingerprint mismatch")
	ErrMissingIdentity        = errors.New("document has no id")
	ErrInvalidRecord          = errors.New("record is not a JSON object")
	ErrUnsupportedLiteral     = errors.New("unsupported literal type")
	ErrUnsupportedContainment = errors.New("containment requires an equality sub-query")
	ErrInvalidPath            = errors.New("invalid document path")
	ErrNotAnAttachment        = errors.New("field is not an attachment pointer")
	ErrInvalidResponse        = errors.New("invalid BlobStash response")
)

// ErrExhausted signals the normal end of a paginated sequence.
var ErrExhausted = errors.New("no more items")

var (
	ErrNoBaseURL     = errors.New("base url not set")
	ErrNoMarshaler   = errors.New("marshaler is not set")
	ErrNoUnmarshaler = errors.New("unmarshaler is not set")
)
