package fakeblobstash

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// StoredQuery evaluates a server-side stored query against a decoded document.
type StoredQuery func(doc map[string]any, args []any) bool

// predicate matches decoded documents.
type predicate func(doc map[string]any) bool

// compilePredicate compiles a Lua document predicate, as produced by the
// query package, into an expr program. Runtime errors, such as a field
// access on a missing object, make the document not match.
func compilePredicate(lua string) (predicate, error) {
	code, err := luaToExpr(lua)
	if err != nil {
		return nil, err
	}
	program, err := expr.Compile(code, expr.Function("in_list", inList))
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", code, err)
	}
	return func(doc map[string]any) bool {
		out, err := vm.Run(program, map[string]any{"doc": doc})
		if err != nil {
			return false
		}
		b, ok := out.(bool)
		return ok && b
	}, nil
}

// luaToExpr rewrites the Lua operators and one-based indices that differ in
// expr syntax. String literals are copied with decimal escapes turned into
// hex escapes.
func luaToExpr(src string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '"':
			end, lit, err := luaString(src, i)
			if err != nil {
				return "", err
			}
			b.WriteString(lit)
			i = end
		case c == '~' && i+1 < len(src) && src[i+1] == '=':
			b.WriteString("!=")
			i++
		case c == '[':
			end := strings.IndexByte(src[i:], ']')
			if end < 0 {
				return "", fmt.Errorf("unterminated index at %d", i)
			}
			n, err := strconv.Atoi(strings.TrimSpace(src[i+1 : i+end]))
			if err != nil {
				return "", fmt.Errorf("bad index %q", src[i+1:i+end])
			}
			fmt.Fprintf(&b, "[%d]", n-1)
			i += end
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// luaString copies the double-quoted literal starting at start and returns
// the index of its closing quote.
func luaString(src string, start int) (int, string, error) {
	var b strings.Builder
	b.WriteByte('"')
	for i := start + 1; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '"':
			b.WriteByte('"')
			return i, b.String(), nil
		case c == '\\' && i+1 < len(src):
			next := src[i+1]
			if next >= '0' && next <= '9' {
				j := i + 1
				for j < len(src) && j < i+4 && src[j] >= '0' && src[j] <= '9' {
					j++
				}
				n, _ := strconv.Atoi(src[i+1 : j])
				if n > 255 {
					return 0, "", fmt.Errorf("bad escape %q", src[i:j])
				}
				fmt.Fprintf(&b, `\x%02x`, n)
				i = j - 1
				continue
			}
			b.WriteByte(c)
			b.WriteByte(next)
			i++
		default:
			b.WriteByte(c)
		}
	}
	return 0, "", fmt.Errorf("unterminated string at %d", start)
}

// inList implements in_list(list, value) and in_list(list, value, field).
func inList(params ...any) (any, error) {
	if len(params) < 2 || len(params) > 3 {
		return nil, fmt.Errorf("in_list: expected 2 or 3 arguments, got %d", len(params))
	}
	list, ok := params[0].([]any)
	if !ok {
		return false, nil
	}
	var field string
	if len(params) == 3 {
		if field, ok = params[2].(string); !ok {
			return nil, fmt.Errorf("in_list: field must be a string")
		}
	}

	for _, item := range list {
		if field != "" {
			v, ok := lookup(item, field)
			if !ok {
				continue
			}
			item = v
		}
		if looseEqual(item, params[1]) {
			return true, nil
		}
	}
	return false, nil
}

// lookup resolves a dotted path with one-based [n] indices inside v.
func lookup(v any, path string) (any, bool) {
	for _, part := range strings.Split(path, ".") {
		name, rest, _ := strings.Cut(part, "[")
		if name != "" {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, false
			}
			if v, ok = m[name]; !ok {
				return nil, false
			}
		}
		for rest != "" {
			idx, after, ok := strings.Cut(rest, "]")
			if !ok {
				return nil, false
			}
			n, err := strconv.Atoi(idx)
			l, isList := v.([]any)
			if err != nil || !isList || n < 1 || n > len(l) {
				return nil, false
			}
			v = l[n-1]
			rest = strings.TrimPrefix(after, "[")
		}
	}
	return v, true
}

func looseEqual(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
