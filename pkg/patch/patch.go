// Package patch computes and applies RFC 6902 JSON patches between document
// values.
package patch

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/goccy/go-json"

	"github.com/blobstash/blobstash.go/pkg/models"
)

type OpKind string

const (
	OpAdd     OpKind = "add"
	OpRemove  OpKind = "remove"
	OpReplace OpKind = "replace"
)

// Operation is a single RFC 6902 operation. Value is ignored for removals.
type Operation struct {
	Op    OpKind
	Path  string
	Value models.Value
}

func (o Operation) MarshalJSON() ([]byte, error) {
	path, err := json.Marshal(o.Path)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"op":"`)
	buf.WriteString(string(o.Op))
	buf.WriteString(`","path":`)
	buf.Write(path)
	if o.Op != OpRemove {
		value, err := o.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"value":`)
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o Operation) String() string {
	if o.Op == OpRemove {
		return fmt.Sprintf("%s %s", o.Op, o.Path)
	}
	return fmt.Sprintf("%s %s %s", o.Op, o.Path, o.Value)
}

// Patch is an ordered list of operations.
type Patch []Operation

func (p Patch) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, op := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := op.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Empty reports whether applying p is a no-op.
func (p Patch) Empty() bool {
	return len(p) == 0
}

// Apply applies p to the JSON document doc.
func (p Patch) Apply(doc []byte) ([]byte, error) {
	data, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return ApplyJSON(data, doc)
}

// ApplyJSON applies an encoded RFC 6902 patch to doc.
func ApplyJSON(patchJSON, doc []byte) ([]byte, error) {
	ops, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding patch: %w", err)
	}
	out, err := ops.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("applying patch: %w", err)
	}
	return out, nil
}

// EscapeToken escapes a JSON pointer reference token.
func EscapeToken(token string) string {
	return strings.ReplaceAll(strings.ReplaceAll(token, "~", "~0"), "/", "~1")
}

func childPath(parent, token string) string {
	return parent + "/" + EscapeToken(token)
}

func indexPath(parent string, i int) string {
	return parent + "/" + strconv.Itoa(i)
}
