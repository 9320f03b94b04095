package fakeblobstash

import (
	"errors"
	"fmt"
)

var errUnsupportedScript = errors.New("lua scripts are not supported")

func errUnknownStoredQuery(name string) error {
	return fmt.Errorf("unknown stored query %q", name)
}
