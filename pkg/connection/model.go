package connection

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError is returned for network failures (StatusCode 0) and for
// non-2xx responses other than 404.
type TransportError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HasStatus reports whether err is a TransportError with the given status code.
func HasStatus(err error, status int) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.StatusCode == status
}
