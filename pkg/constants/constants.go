package constants

import "time"

const (
	DefaultBaseURL     = "http://localhost:8050"
	DefaultHTTPTimeout = 10 * time.Second
	// DefaultPageSize is the per-request `limit` sent to listing endpoints.
	DefaultPageSize = 50
	RequestIDLength = 16

	EnvBaseURL = "BLOBSTASH_BASE_URL"
	EnvAPIKey  = "BLOBSTASH_API_KEY"
	EnvTimeout = "BLOBSTASH_TIMEOUT"
)

var (
	HTTPScheme       = "http"
	HTTPSecureScheme = "https"
)

// Wire format details shared by the client and the test server.
const (
	// TimeLayout is the UTC layout of the `_created` and `_updated` fields.
	TimeLayout = "2006-01-02T15:04:05Z"
	// AsOfLayout is the layout of the `as_of` query parameter.
	AsOfLayout = "2006-01-02 15:04:05"

	FileTreePointerPrefix = "@filetree/ref:"

	HeaderIfMatch   = "If-Match"
	HeaderRequestID = "X-Request-Id"

	ContentTypeJSON      = "application/json"
	ContentTypeJSONPatch = "application/json-patch+json"
	ContentTypeForm      = "application/x-www-form-urlencoded"
)
