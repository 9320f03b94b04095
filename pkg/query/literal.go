package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/models"
)

// Literal renders v as a Lua literal. Supported values are nil, bool,
// strings, Go integer and float types, json.Number and scalar models.Value.
func Literal(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "nil", nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case string:
		return quote(t), nil
	case []byte:
		return quote(string(t)), nil
	case int:
		return strconv.FormatInt(int64(t), 10), nil
	case int8:
		return strconv.FormatInt(int64(t), 10), nil
	case int16:
		return strconv.FormatInt(int64(t), 10), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float32:
		return formatFloat(float64(t), 32)
	case float64:
		return formatFloat(t, 64)
	case json.Number:
		return numberLiteral(string(t))
	case models.Number:
		return numberLiteral(string(t))
	case models.Value:
		return valueLiteral(t)
	default:
		return "", fmt.Errorf("%w: %T", constants.ErrUnsupportedLiteral, v)
	}
}

func valueLiteral(v models.Value) (string, error) {
	switch v.Kind() {
	case models.KindNull:
		return "nil", nil
	case models.KindBool:
		b, _ := v.AsBool()
		return Literal(b)
	case models.KindNumber:
		n, _ := v.AsNumber()
		return numberLiteral(string(n))
	case models.KindString:
		s, _ := v.AsString()
		return quote(s), nil
	case models.KindPointer:
		s, _ := v.AsPointer()
		return quote(s), nil
	default:
		return "", fmt.Errorf("%w: %s value", constants.ErrUnsupportedLiteral, v.Kind())
	}
}

func formatFloat(f float64, bitSize int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", constants.ErrUnsupportedLiteral, f)
	}
	return strconv.FormatFloat(f, 'g', -1, bitSize), nil
}

// numberLiteral passes n through verbatim when it is a finite JSON number.
// Go-only forms such as "+5", "0x10" or "1_000" are rejected.
func numberLiteral(n string) (string, error) {
	if !isJSONNumber(n) {
		return "", fmt.Errorf("%w: number %q", constants.ErrUnsupportedLiteral, n)
	}
	f, err := strconv.ParseFloat(n, 64)
	if err != nil {
		return "", fmt.Errorf("%w: number %q", constants.ErrUnsupportedLiteral, n)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: number %q", constants.ErrUnsupportedLiteral, n)
	}
	return n, nil
}

func isJSONNumber(n string) bool {
	if n == "" {
		return false
	}
	first, last := n[0], n[len(n)-1]
	if first != '-' && (first < '0' || first > '9') {
		return false
	}
	if last < '0' || last > '9' {
		return false
	}
	return json.Valid([]byte(n))
}

// quote returns s as a double-quoted Lua string.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, `\%03d`, c)
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
