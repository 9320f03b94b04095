package blobstash

import "github.com/blobstash/blobstash.go/pkg/constants"

// Errors returned by the stores, for use with errors.Is.
var (
	ErrNotFound           = constants.ErrNotFound
	ErrConflict           = constants.ErrConflict
	ErrMissingIdentity    = constants.ErrMissingIdentity
	ErrInvalidRecord      = constants.ErrInvalidRecord
	ErrInvalidResponse    = constants.ErrInvalidResponse
	ErrNotAnAttachment    = constants.ErrNotAnAttachment
	ErrUnsupportedLiteral = constants.ErrUnsupportedLiteral
	ErrInvalidPath        = constants.ErrInvalidPath
	ErrNoBaseURL          = constants.ErrNoBaseURL
	ErrNoMarshaler        = constants.ErrNoMarshaler
	ErrNoUnmarshaler      = constants.ErrNoUnmarshaler
)
