// Package filetree reads BlobStash file-tree nodes referenced by document
// attachments.
package filetree

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/blobstash/blobstash.go/pkg/constants"
)

const (
	TypeFile = "file"
	TypeDir  = "dir"
)

// Node is the metadata of a file or directory.
type Node struct {
	Name     string         `json:"name"`
	Ref      string         `json:"ref"`
	Size     int64          `json:"size,omitempty"`
	Type     string         `json:"type"`
	URL      string         `json:"url,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Children []*Node        `json:"children,omitempty"`
}

// ParseNode decodes a node representation, children included.
func ParseNode(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: node: %v", constants.ErrInvalidResponse, err)
	}
	if n.Ref == "" {
		return nil, fmt.Errorf("%w: node without ref", constants.ErrInvalidResponse)
	}
	return &n, nil
}

func (n *Node) IsDir() bool  { return n.Type == TypeDir }
func (n *Node) IsFile() bool { return n.Type == TypeFile }

// Equal compares nodes by ref.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.Ref == other.Ref
}

func (n *Node) String() string {
	return fmt.Sprintf("Node(name=%q, ref=%q, type=%q)", n.Name, n.Ref, n.Type)
}

// Attachment is a file-tree node tied to a document field through a pointer.
type Attachment struct {
	Pointer string
	Node    *Node
}

// Ref returns the node ref embedded in the pointer.
func (a *Attachment) Ref() string {
	return strings.TrimPrefix(a.Pointer, constants.FileTreePointerPrefix)
}

// PointerTo returns the attachment pointer for ref.
func PointerTo(ref string) string {
	return constants.FileTreePointerPrefix + ref
}

// RefFromPointer extracts the node ref from an attachment pointer.
func RefFromPointer(pointer string) (string, error) {
	ref, ok := strings.CutPrefix(pointer, constants.FileTreePointerPrefix)
	if !ok || ref == "" {
		return "", fmt.Errorf("%w: %q", constants.ErrNotAnAttachment, pointer)
	}
	return ref, nil
}
