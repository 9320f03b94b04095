package filetree

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/blobstash/blobstash.go/pkg/connection"
	"github.com/blobstash/blobstash.go/pkg/constants"
)

// Resolver turns an attachment pointer into its attachment.
type Resolver interface {
	Resolve(ctx context.Context, pointer string) (*Attachment, error)
}

// Client reads nodes from the file-tree API.
type Client struct {
	t connection.Transport
}

func New(t connection.Transport) *Client {
	return &Client{t: t}
}

// Node fetches the node for ref.
func (c *Client) Node(ctx context.Context, ref string) (*Node, error) {
	body, err := c.t.Request(ctx, connection.NewRequest(http.MethodGet, "/api/filetree/node/"+url.PathEscape(ref)))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Node json.RawMessage `json:"node"`
	}
	if err := connection.Unmarshal(c.t, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Node) == 0 {
		return nil, fmt.Errorf("%w: missing node", constants.ErrInvalidResponse)
	}
	return ParseNode(resp.Node)
}

// Content returns the raw content of the file node ref.
func (c *Client) Content(ctx context.Context, ref string) ([]byte, error) {
	return c.t.Request(ctx, connection.NewRequest(http.MethodGet, "/api/filetree/file/"+url.PathEscape(ref)))
}

// Resolve fetches the node behind pointer.
func (c *Client) Resolve(ctx context.Context, pointer string) (*Attachment, error) {
	ref, err := RefFromPointer(pointer)
	if err != nil {
		return nil, err
	}
	node, err := c.Node(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Attachment{Pointer: pointer, Node: node}, nil
}

// Pointers resolves attachments from the pointers block of a docstore
// response, falling back to Fallback for pointers the block does not hold.
type Pointers struct {
	Nodes    map[string]json.RawMessage
	Fallback Resolver
}

func (p *Pointers) Resolve(ctx context.Context, pointer string) (*Attachment, error) {
	if _, err := RefFromPointer(pointer); err != nil {
		return nil, err
	}
	if raw, ok := p.Nodes[pointer]; ok && len(raw) > 0 && string(raw) != "null" {
		node, err := ParseNode(raw)
		if err != nil {
			return nil, err
		}
		return &Attachment{Pointer: pointer, Node: node}, nil
	}
	if p.Fallback == nil {
		return nil, fmt.Errorf("%w: no node for %s", constants.ErrNotFound, pointer)
	}
	return p.Fallback.Resolve(ctx, pointer)
}
