package docstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/models"
	"github.com/blobstash/blobstash.go/pkg/patch"
)

func TestCache_PrepareUpdatePatch(t *testing.T) {
	c := NewCache()
	c.Store("d1", parseObject(t, `{"a":1,"b":2}`))

	intent, err := c.PrepareUpdate("d1", "h1", parseObject(t, `{"a":1,"b":3,"c":4}`))
	require.NoError(t, err)

	assert.Equal(t, IntentPatch, intent.Kind)
	assert.Equal(t, "h1", intent.Fingerprint)
	assert.Nil(t, intent.Body)
	require.Len(t, intent.Ops, 2)
	assert.Equal(t, patch.OpReplace, intent.Ops[0].Op)
	assert.Equal(t, "/b", intent.Ops[0].Path)
	assert.Equal(t, "3", intent.Ops[0].Value.String())
	assert.Equal(t, patch.OpAdd, intent.Ops[1].Op)
	assert.Equal(t, "/c", intent.Ops[1].Path)
	assert.Equal(t, "4", intent.Ops[1].Value.String())

	_, ok := c.Baseline("d1")
	assert.False(t, ok, "baseline is evicted once the intent is built")
}

func TestCache_PrepareUpdateUnchanged(t *testing.T) {
	c := NewCache()
	c.Store("d1", parseObject(t, `{"a":1,"l":[1,{"x":"y"}]}`))

	intent, err := c.PrepareUpdate("d1", "h1", parseObject(t, `{"a":1,"l":[1,{"x":"y"}]}`))
	require.NoError(t, err)
	assert.Equal(t, IntentPatch, intent.Kind)
	assert.Empty(t, intent.Ops)
}

func TestCache_PrepareUpdateLargeInteger(t *testing.T) {
	c := NewCache()
	c.Store("d1", parseObject(t, `{"n":9007199254740993}`))

	intent, err := c.PrepareUpdate("d1", "h1", models.NewObject().Set("n", models.Int(9007199254740992)))
	require.NoError(t, err)
	assert.Equal(t, IntentPatch, intent.Kind)
	require.Len(t, intent.Ops, 1)
	assert.Equal(t, patch.OpReplace, intent.Ops[0].Op)
	assert.Equal(t, "/n", intent.Ops[0].Path)
	assert.Equal(t, "9007199254740992", intent.Ops[0].Value.String())
}

func TestCache_PrepareUpdateMiss(t *testing.T) {
	c := NewCache()
	mutated := parseObject(t, `{"a":1}`)

	intent, err := c.PrepareUpdate("unknown", "h", mutated)
	require.NoError(t, err)
	assert.Equal(t, IntentReplace, intent.Kind)
	assert.Nil(t, intent.Ops)
	assert.True(t, mutated.Equal(intent.Body))

	mutated.Set("a", models.Int(2))
	assert.Equal(t, `{"a":1}`, intent.Body.String(), "replace body is a snapshot")
}

func TestCache_PrepareUpdateErrors(t *testing.T) {
	c := NewCache()
	c.Store("d1", parseObject(t, `{"a":1}`))

	_, err := c.PrepareUpdate("", "h", parseObject(t, `{}`))
	assert.ErrorIs(t, err, constants.ErrMissingIdentity)

	_, err = c.PrepareUpdate("d1", "h", nil)
	assert.ErrorIs(t, err, constants.ErrInvalidRecord)

	_, ok := c.Baseline("d1")
	assert.True(t, ok, "a failed intent keeps the baseline")
}

func TestCache_StoreSnapshots(t *testing.T) {
	c := NewCache()
	body := parseObject(t, `{"a":{"b":1}}`)
	c.Store("d1", body)

	inner, _ := body.Get("a")
	o, _ := inner.AsObject()
	o.Set("b", models.Int(2))

	baseline, ok := c.Baseline("d1")
	require.True(t, ok)
	assert.Equal(t, `{"a":{"b":1}}`, baseline.String())

	baseline.Set("z", models.Null())
	again, _ := c.Baseline("d1")
	assert.False(t, again.Has("z"))
}

func TestCache_EvictClear(t *testing.T) {
	c := NewCache()
	c.Store("", parseObject(t, `{}`))
	c.Store("x", nil)
	assert.Equal(t, 0, c.Len())

	c.Store("a", parseObject(t, `{}`))
	c.Store("b", parseObject(t, `{}`))
	assert.Equal(t, 2, c.Len())

	c.Evict("a")
	c.Evict("missing")
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCache_concurrentPrepareUpdate(t *testing.T) {
	c := NewCache()
	c.Store("d1", parseObject(t, `{"a":1}`))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		patches int
	)
	bodies := make([]*models.Object, 16)
	for i := range bodies {
		bodies[i] = parseObject(t, fmt.Sprintf(`{"a":%d}`, i))
	}
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			intent, err := c.PrepareUpdate("d1", "h", bodies[i])
			if err != nil || intent.Kind != IntentPatch {
				return
			}
			mu.Lock()
			patches++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, patches, "only one writer sees the baseline")
}
