// Package models defines the dynamically-typed document values exchanged
// with the BlobStash document store.
//
// A Value is a closed sum type over null, booleans, numbers, strings,
// attachment pointers, objects and lists. Objects keep their key order
// through decoding, mutation and encoding.
package models

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/blobstash/blobstash.go/pkg/constants"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindPointer
	KindObject
	KindList
)

var kindNames = [...]string{
	KindNull:    "null",
	KindBool:    "bool",
	KindNumber:  "number",
	KindString:  "string",
	KindPointer: "pointer",
	KindObject:  "object",
	KindList:    "list",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Number is the literal text of a JSON number.
type Number string

func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Value is a document value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	// s holds the string, the pointer or the number literal.
	s    string
	obj  *Object
	list []Value
}

func Null() Value {
	return Value{}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func Int(i int64) Value {
	return Value{kind: KindNumber, s: strconv.FormatInt(i, 10)}
}

// Float returns a number value. NaN and infinities have no JSON form and
// yield null.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Value{kind: KindNumber, s: strconv.FormatFloat(f, 'g', -1, 64)}
}

// NumberValue wraps a number literal as-is.
func NumberValue(n Number) Value {
	return Value{kind: KindNumber, s: string(n)}
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Pointer returns an attachment pointer value, e.g. "@filetree/ref:<ref>".
func Pointer(pointer string) Value {
	return Value{kind: KindPointer, s: pointer}
}

// IsPointerString reports whether s has the attachment pointer form.
func IsPointerString(s string) bool {
	return strings.HasPrefix(s, constants.FileTreePointerPrefix)
}

func ObjectValue(o *Object) Value {
	if o == nil {
		return Null()
	}
	return Value{kind: KindObject, obj: o}
}

func List(values ...Value) Value {
	if values == nil {
		values = []Value{}
	}
	return Value{kind: KindList, list: values}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) AsBool() (b, ok bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsNumber() (Number, bool) {
	return Number(v.s), v.kind == KindNumber
}

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

func (v Value) AsPointer() (string, bool) {
	return v.s, v.kind == KindPointer
}

func (v Value) AsObject() (*Object, bool) {
	return v.obj, v.kind == KindObject
}

// AsList returns the underlying slice; mutating it mutates the value.
func (v Value) AsList() ([]Value, bool) {
	return v.list, v.kind == KindList
}

// IsScalar reports whether v is neither an object nor a list.
func (v Value) IsScalar() bool {
	return v.kind != KindObject && v.kind != KindList
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	case KindList:
		l := make([]Value, len(v.list))
		for i, item := range v.list {
			l[i] = item.Clone()
		}
		return Value{kind: KindList, list: l}
	default:
		return v
	}
}

// Equal compares wire representations: a pointer equals a string with the
// same text, numbers compare by exact decimal value and object key order is
// ignored.
func (v Value) Equal(other Value) bool {
	switch {
	case v.isText() && other.isText():
		return v.s == other.s
	case v.kind != other.kind:
		return false
	}

	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return numberEqual(v.s, other.s)
	case KindObject:
		return v.obj.Equal(other.obj)
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// numberEqual compares two JSON number literals exactly, so integers past
// float64 precision stay distinct.
func numberEqual(a, b string) bool {
	if a == b {
		return true
	}
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return x == y
	}
	ra, okA := new(big.Rat).SetString(a)
	rb, okB := new(big.Rat).SetString(b)
	return okA && okB && ra.Cmp(rb) == 0
}

func (v Value) isText() bool {
	return v.kind == KindString || v.kind == KindPointer
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(v.s)
	case KindString, KindPointer:
		s, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(s)
	case KindObject:
		return v.obj.encode(buf)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("cannot encode value of %s", v.kind)
	}
	return nil
}

// String returns the JSON form of v.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.kind, err)
	}
	return string(data)
}

// FromAny converts common Go values (as produced by encoding/json, plus
// integer and float types, *Object and Value) to a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Object:
		return ObjectValue(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return NumberValue(Number(t)), nil
	case Number:
		return NumberValue(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return NumberValue(Number(strconv.FormatUint(uint64(t), 10))), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return NumberValue(Number(strconv.FormatUint(t, 10))), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []any:
		l := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Null(), err
			}
			l[i] = v
		}
		return List(l...), nil
	case map[string]any:
		o, err := ObjectFromMap(t)
		if err != nil {
			return Null(), err
		}
		return ObjectValue(o), nil
	default:
		return Null(), fmt.Errorf("unsupported value type %T", x)
	}
}

// MustFromAny is FromAny for values known to be convertible.
func MustFromAny(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}
