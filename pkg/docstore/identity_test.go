package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobstash/blobstash.go/pkg/models"
)

func parseObject(t *testing.T, s string) *models.Object {
	t.Helper()
	o, err := models.ParseObject([]byte(s))
	require.NoError(t, err)
	return o
}

func TestExtract(t *testing.T) {
	raw := parseObject(t, `{"_id":"abc","title":"x","_created":"2024-01-02T03:04:05Z","_updated":"2024-01-03T03:04:05Z","_hash":"h1","n":1}`)

	body, id := Extract(raw)

	assert.Equal(t, []string{"title", "n"}, body.Keys())
	assert.Equal(t, "abc", id.ID)
	assert.Equal(t, "h1", id.Fingerprint)
	require.NotNil(t, id.Created)
	require.NotNil(t, id.Updated)
	assert.True(t, id.Created.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Equal(t, time.Local, id.Created.Location())
	assert.True(t, id.Updated.After(*id.Created))
	assert.Equal(t, "abc", id.String())
}

func TestExtract_absentTimestamps(t *testing.T) {
	body, id := Extract(parseObject(t, `{"_id":"abc","a":1}`))

	assert.Nil(t, id.Created)
	assert.Nil(t, id.Updated)
	assert.Empty(t, id.Fingerprint)
	assert.Equal(t, []string{"a"}, body.Keys())
}

func TestExtract_badTimestamp(t *testing.T) {
	body, id, err := extract(parseObject(t, `{"_id":"abc","_created":"yesterday","a":1}`))

	require.Error(t, err)
	assert.Nil(t, id.Created)
	assert.Equal(t, "abc", id.ID)
	assert.Equal(t, []string{"a"}, body.Keys(), "reserved keys are removed even when unparseable")
}

func TestExtract_twice(t *testing.T) {
	body, _ := Extract(parseObject(t, `{"_id":"abc","a":1}`))
	again, id := Extract(body)

	assert.True(t, id.IsZero())
	assert.Equal(t, []string{"a"}, again.Keys())
}

func TestExtract_nil(t *testing.T) {
	body, id := Extract(nil)
	assert.Nil(t, body)
	assert.True(t, id.IsZero())
}

func TestIdentity_Equal(t *testing.T) {
	now := time.Now()
	a := Identity{ID: "x", Fingerprint: "1", Created: &now}
	assert.True(t, a.Equal(Identity{ID: "x", Fingerprint: "1"}))
	assert.False(t, a.Equal(Identity{ID: "x", Fingerprint: "2"}))
	assert.False(t, a.Equal(Identity{ID: "y", Fingerprint: "1"}))
}
