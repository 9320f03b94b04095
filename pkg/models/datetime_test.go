package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("2017-06-07T11:22:33Z")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Local, got.Location())
	assert.True(t, got.Equal(time.Date(2017, 6, 7, 11, 22, 33, 0, time.UTC)))
	assert.Equal(t, "2017-06-07T11:22:33Z", FormatDateTime(*got))
}

func TestParseDateTime_absent(t *testing.T) {
	got, err := ParseDateTime("")
	require.NoError(t, err)
	assert.Nil(t, got, "absent must not be confused with the epoch")
}

func TestParseDateTime_invalid(t *testing.T) {
	_, err := ParseDateTime("yesterday")
	assert.Error(t, err)
}
