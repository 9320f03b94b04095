package filetree_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobstash/blobstash.go/internal/mock"
	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/filetree"
)

const nodeJSON = `{"name":"docs","ref":"r1","type":"dir","children":[{"name":"a.txt","ref":"r2","type":"file","size":12,"url":"/f/r2","metadata":{"blake2b-hash":"ab"}}]}`

func TestClient_Node(t *testing.T) {
	tr := mock.Create()
	tr.ExpectJSON(http.MethodGet, "/api/filetree/node/r1", `{"node":`+nodeJSON+`}`)

	node, err := filetree.New(tr).Node(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, "docs", node.Name)
	assert.True(t, node.IsDir())
	require.Len(t, node.Children, 1)

	child := node.Children[0]
	assert.True(t, child.IsFile())
	assert.Equal(t, int64(12), child.Size)
	assert.Equal(t, "/f/r2", child.URL)
	assert.Equal(t, "ab", child.Metadata["blake2b-hash"])
	tr.AssertExpectations(t)
}

func TestClient_NodeNotFound(t *testing.T) {
	tr := mock.Create()
	tr.Expect(http.MethodGet, "/api/filetree/node/nope", nil, constants.ErrNotFound)

	_, err := filetree.New(tr).Node(context.Background(), "nope")
	assert.ErrorIs(t, err, constants.ErrNotFound)
}

func TestClient_NodeInvalidResponse(t *testing.T) {
	tr := mock.Create()
	tr.ExpectJSON(http.MethodGet, "/api/filetree/node/r1", `{}`)
	tr.ExpectJSON(http.MethodGet, "/api/filetree/node/r2", `{"node":{"name":"x"}}`)

	c := filetree.New(tr)
	_, err := c.Node(context.Background(), "r1")
	assert.ErrorIs(t, err, constants.ErrInvalidResponse)
	_, err = c.Node(context.Background(), "r2")
	assert.ErrorIs(t, err, constants.ErrInvalidResponse)
}

func TestClient_Resolve(t *testing.T) {
	tr := mock.Create()
	tr.ExpectJSON(http.MethodGet, "/api/filetree/node/r1", `{"node":`+nodeJSON+`}`)

	c := filetree.New(tr)
	a, err := c.Resolve(context.Background(), filetree.PointerTo("r1"))
	require.NoError(t, err)
	assert.Equal(t, "@filetree/ref:r1", a.Pointer)
	assert.Equal(t, "r1", a.Ref())
	assert.Equal(t, "docs", a.Node.Name)

	_, err = c.Resolve(context.Background(), "plain string")
	assert.ErrorIs(t, err, constants.ErrNotAnAttachment)
	tr.AssertNumberOfCalls(t, "Request", 1)
}

func TestClient_Content(t *testing.T) {
	tr := mock.Create()
	tr.Expect(http.MethodGet, "/api/filetree/file/r2", []byte("hello world!"), nil)

	data, err := filetree.New(tr).Content(context.Background(), "r2")
	require.NoError(t, err)
	assert.Equal(t, "hello world!", string(data))
}

func TestPointers_Resolve(t *testing.T) {
	tr := mock.Create()
	tr.ExpectJSON(http.MethodGet, "/api/filetree/node/r9", `{"node":{"name":"late","ref":"r9","type":"file"}}`)

	p := &filetree.Pointers{
		Nodes:    map[string]json.RawMessage{"@filetree/ref:r1": json.RawMessage(nodeJSON)},
		Fallback: filetree.New(tr),
	}

	a, err := p.Resolve(context.Background(), "@filetree/ref:r1")
	require.NoError(t, err)
	assert.Equal(t, "docs", a.Node.Name)
	assert.Empty(t, tr.Requests(http.MethodGet, "/api/filetree/node/r1"))

	a, err = p.Resolve(context.Background(), "@filetree/ref:r9")
	require.NoError(t, err)
	assert.Equal(t, "late", a.Node.Name)
	tr.AssertExpectations(t)

	_, err = (&filetree.Pointers{}).Resolve(context.Background(), "@filetree/ref:r3")
	assert.ErrorIs(t, err, constants.ErrNotFound)
}

func TestNode_Equal(t *testing.T) {
	a := &filetree.Node{Ref: "x", Name: "a"}
	b := &filetree.Node{Ref: "x", Name: "b"}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(&filetree.Node{Ref: "y"}))
	assert.False(t, a.Equal(nil))
}

func TestRefFromPointer(t *testing.T) {
	ref, err := filetree.RefFromPointer("@filetree/ref:abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", ref)

	_, err = filetree.RefFromPointer("@filetree/ref:")
	assert.ErrorIs(t, err, constants.ErrNotAnAttachment)
}
