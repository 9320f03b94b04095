package patch_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobstash/blobstash.go/pkg/models"
	"github.com/blobstash/blobstash.go/pkg/patch"
)

func mustParse(t *testing.T, s string) models.Value {
	t.Helper()
	v, err := models.Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want string
	}{
		{
			name: "replace and add",
			from: `{"a":1,"b":2}`,
			to:   `{"a":1,"b":3,"c":4}`,
			want: `[{"op":"replace","path":"/b","value":3},{"op":"add","path":"/c","value":4}]`,
		},
		{
			name: "unchanged",
			from: `{"a":1,"b":{"c":[1,2]}}`,
			to:   `{"b":{"c":[1,2]},"a":1}`,
			want: `[]`,
		},
		{
			name: "removals follow baseline order",
			from: `{"a":1,"b":2,"c":3}`,
			to:   `{"c":3}`,
			want: `[{"op":"remove","path":"/a"},{"op":"remove","path":"/b"}]`,
		},
		{
			name: "additions follow mutated order",
			from: `{}`,
			to:   `{"z":1,"a":2}`,
			want: `[{"op":"add","path":"/z","value":1},{"op":"add","path":"/a","value":2}]`,
		},
		{
			name: "nested change",
			from: `{"x":{"y":1,"k":"v"}}`,
			to:   `{"x":{"y":2,"k":"v"}}`,
			want: `[{"op":"replace","path":"/x/y","value":2}]`,
		},
		{
			name: "kind change replaces whole value",
			from: `{"x":{"y":1}}`,
			to:   `{"x":[1]}`,
			want: `[{"op":"replace","path":"/x","value":[1]}]`,
		},
		{
			name: "list shrinks from the tail",
			from: `{"l":[1,2,3,4]}`,
			to:   `{"l":[1,5]}`,
			want: `[{"op":"replace","path":"/l/1","value":5},{"op":"remove","path":"/l/3"},{"op":"remove","path":"/l/2"}]`,
		},
		{
			name: "list grows at the tail",
			from: `{"l":[1]}`,
			to:   `{"l":[1,2,3]}`,
			want: `[{"op":"add","path":"/l/1","value":2},{"op":"add","path":"/l/2","value":3}]`,
		},
		{
			name: "objects inside lists",
			from: `{"l":[{"n":"a"},{"n":"b"}]}`,
			to:   `{"l":[{"n":"a"},{"n":"c","x":true}]}`,
			want: `[{"op":"replace","path":"/l/1/n","value":"c"},{"op":"add","path":"/l/1/x","value":true}]`,
		},
		{
			name: "pointer tokens are escaped",
			from: `{"a/b~c":1}`,
			to:   `{"a/b~c":2}`,
			want: `[{"op":"replace","path":"/a~1b~0c","value":2}]`,
		},
		{
			name: "null to value",
			from: `{"a":null}`,
			to:   `{"a":"x"}`,
			want: `[{"op":"replace","path":"/a","value":"x"}]`,
		},
		{
			name: "numbers compare numerically",
			from: `{"a":1.0}`,
			to:   `{"a":1}`,
			want: `[]`,
		},
		{
			name: "integers past float precision",
			from: `{"n":9007199254740993}`,
			to:   `{"n":9007199254740992}`,
			want: `[{"op":"replace","path":"/n","value":9007199254740992}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := patch.Diff(mustParse(t, tt.from), mustParse(t, tt.to))
			got, err := p.MarshalJSON()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestDiff_pointerEqualsString(t *testing.T) {
	from := models.ObjectValue(models.NewObject().Set("file", models.Pointer("@filetree/ref:abc")))
	to := models.ObjectValue(models.NewObject().Set("file", models.String("@filetree/ref:abc")))

	assert.True(t, patch.Diff(from, to).Empty())
}

func TestDiff_largeIntegerChange(t *testing.T) {
	from := mustParse(t, `{"n":9007199254740993}`)
	to := models.ObjectValue(models.NewObject().Set("n", models.Int(9007199254740992)))

	p := patch.Diff(from, to)
	require.Len(t, p, 1)
	assert.Equal(t, patch.OpReplace, p[0].Op)
	assert.Equal(t, "9007199254740992", p[0].Value.String())
}

func TestDiff_doesNotAliasMutated(t *testing.T) {
	from := models.NewObject()
	nested := models.NewObject().Set("k", models.Int(1))
	to := models.NewObject().Set("n", models.ObjectValue(nested))

	p := patch.DiffObjects(from, to)
	require.Len(t, p, 1)

	nested.Set("k", models.Int(2))
	assert.Equal(t, `{"k":1}`, p[0].Value.String())
}

func TestPatch_ApplyRoundTrip(t *testing.T) {
	pairs := [][2]string{
		{`{"a":1,"b":2}`, `{"a":1,"b":3,"c":4}`},
		{`{"l":[1,2,3,4],"m":{"x":1}}`, `{"l":[9],"m":{"y":[true,null]}}`},
		{`{"l":[]}`, `{"l":[{"a":1},{"b":2}]}`},
		{`{"a/b":{"~":1}}`, `{"a/b":{"~":2,"c":"d"}}`},
	}

	for _, pair := range pairs {
		p := patch.Diff(mustParse(t, pair[0]), mustParse(t, pair[1]))

		out, err := p.Apply([]byte(pair[0]))
		require.NoError(t, err)

		var got, want any
		require.NoError(t, json.Unmarshal(out, &got))
		require.NoError(t, json.Unmarshal([]byte(pair[1]), &want))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("applying %s to %s (-want +got):\n%s", p, pair[0], diff)
		}
	}
}

func TestApplyJSON_invalidPatch(t *testing.T) {
	_, err := patch.ApplyJSON([]byte(`{"op":"add"}`), []byte(`{}`))
	require.Error(t, err)

	_, err = patch.ApplyJSON([]byte(`[{"op":"remove","path":"/missing"}]`), []byte(`{}`))
	require.Error(t, err)
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "remove /a", patch.Operation{Op: patch.OpRemove, Path: "/a"}.String())
	assert.Equal(t, `add /b "x"`, patch.Operation{Op: patch.OpAdd, Path: "/b", Value: models.String("x")}.String())
}
