package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blobstash/blobstash.go/pkg/constants"
)

type segment struct {
	field   string
	index   int
	isIndex bool
}

// PathRef references a value inside a document, e.g. persons[0].name.
// The zero PathRef is invalid.
type PathRef struct {
	segments []segment
	err      error
}

// Path parses a dotted path with optional zero-based [n] indices.
func Path(text string) PathRef {
	segments, err := parsePath(text)
	if err != nil {
		return PathRef{err: err}
	}
	return PathRef{segments: segments}
}

// Field returns p extended with a field access.
func (p PathRef) Field(name string) PathRef {
	if name == "" || strings.ContainsAny(name, ".[]") {
		return p.withErr(fmt.Errorf("%w: invalid field name %q", constants.ErrInvalidPath, name))
	}
	return p.with(segment{field: name})
}

// Index returns p extended with a zero-based list index.
func (p PathRef) Index(i int) PathRef {
	if i < 0 {
		return p.withErr(fmt.Errorf("%w: negative index %d", constants.ErrInvalidPath, i))
	}
	if len(p.segments) == 0 && p.err == nil {
		return p.withErr(fmt.Errorf("%w: index %d without a field", constants.ErrInvalidPath, i))
	}
	return p.with(segment{index: i, isIndex: true})
}

// Err returns the error recorded while building p.
func (p PathRef) Err() error {
	if p.err != nil {
		return p.err
	}
	if len(p.segments) == 0 {
		return fmt.Errorf("%w: empty path", constants.ErrInvalidPath)
	}
	return nil
}

// String returns the path as written, with zero-based indices.
func (p PathRef) String() string {
	return p.format(0)
}

// lua renders the path as a Lua expression on the doc variable.
func (p PathRef) lua() (string, error) {
	if err := p.Err(); err != nil {
		return "", err
	}
	return "doc." + p.format(1), nil
}

func (p PathRef) format(indexOffset int) string {
	var b strings.Builder
	for i, s := range p.segments {
		if s.isIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.index + indexOffset))
			b.WriteByte(']')
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.field)
	}
	return b.String()
}

func (p PathRef) with(s segment) PathRef {
	if p.err != nil {
		return p
	}
	segments := make([]segment, len(p.segments), len(p.segments)+1)
	copy(segments, p.segments)
	return PathRef{segments: append(segments, s)}
}

func (p PathRef) withErr(err error) PathRef {
	if p.err != nil {
		return p
	}
	return PathRef{err: err}
}

func parsePath(text string) ([]segment, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty path", constants.ErrInvalidPath)
	}

	var segments []segment
	for pos := 0; pos < len(text); {
		switch c := text[pos]; {
		case c == '[':
			end := strings.IndexByte(text[pos:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated index in %q", constants.ErrInvalidPath, text)
			}
			if len(segments) == 0 {
				return nil, fmt.Errorf("%w: %q starts with an index", constants.ErrInvalidPath, text)
			}
			digits := text[pos+1 : pos+end]
			n, err := strconv.Atoi(digits)
			if err != nil || n < 0 || strings.ContainsAny(digits, "+-") {
				return nil, fmt.Errorf("%w: bad index %q in %q", constants.ErrInvalidPath, digits, text)
			}
			segments = append(segments, segment{index: n, isIndex: true})
			pos += end + 1
		case c == '.' && len(segments) == 0:
			return nil, fmt.Errorf("%w: %q starts with a dot", constants.ErrInvalidPath, text)
		default:
			if c == '.' {
				pos++
			} else if len(segments) > 0 {
				return nil, fmt.Errorf("%w: missing dot before %q", constants.ErrInvalidPath, text[pos:])
			}
			end := strings.IndexAny(text[pos:], ".[]")
			if end < 0 {
				end = len(text) - pos
			}
			if end == 0 {
				return nil, fmt.Errorf("%w: empty field in %q", constants.ErrInvalidPath, text)
			}
			segments = append(segments, segment{field: text[pos : pos+end]})
			pos += end
		}
	}
	return segments, nil
}
