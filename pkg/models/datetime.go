package models

import (
	"time"

	"github.com/blobstash/blobstash.go/pkg/constants"
)

// ParseDateTime parses a wire timestamp (UTC, second precision) and returns
// it in the local time zone. An empty string yields nil.
func ParseDateTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(constants.TimeLayout, s, time.UTC)
	if err != nil {
		return nil, err
	}
	t = t.Local()
	return &t, nil
}

// FormatDateTime is the inverse of ParseDateTime.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(constants.TimeLayout)
}
