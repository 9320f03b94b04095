package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blobstash/blobstash.go/pkg/constants"
)

// ErrNotComposable is returned when a script or stored query is nested
// inside another expression.
var ErrNotComposable = errors.New("scripts and stored queries cannot be combined with other expressions")

// Kind identifies the variant of an Expr.
type Kind int

const (
	KindAll Kind = iota
	KindCompare
	KindAny
	KindNotAny
	KindContains
	KindAnd
	KindOr
	KindNot
	KindRaw
	KindScript
	KindStored
)

var kindNames = map[Kind]string{
	KindAll:      "all",
	KindCompare:  "compare",
	KindAny:      "any",
	KindNotAny:   "not_any",
	KindContains: "contains",
	KindAnd:      "and",
	KindOr:       "or",
	KindNot:      "not",
	KindRaw:      "raw",
	KindScript:   "script",
	KindStored:   "stored",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "~="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Expr is an immutable query expression. The zero Expr matches every
// document.
//
// Construction errors, such as an unsupported literal, are kept in the
// expression and reported by Err and Compile.
type Expr struct {
	kind Kind

	path PathRef
	op   Op
	// rhs holds rendered Lua operands: one for comparisons, the value set
	// for Any and NotAny, the literal and optional field for Contains.
	rhs []string
	// rhsIsPath is set when rhs[0] is a path rather than a literal.
	rhsIsPath bool

	children []Expr
	text     string
	args     []any

	err error
}

// All returns the expression matching every document.
func All() Expr {
	return Expr{}
}

// Kind returns the variant of e.
func (e Expr) Kind() Kind {
	return e.kind
}

// Err returns the first error recorded while building e or its children.
func (e Expr) Err() error {
	if e.err != nil {
		return e.err
	}
	for _, c := range e.children {
		if err := c.Err(); err != nil {
			return err
		}
	}
	return nil
}

// String returns the compiled predicate, or a description of the error.
func (e Expr) String() string {
	switch e.kind {
	case KindScript:
		return "script(" + e.text + ")"
	case KindStored:
		return "stored(" + e.text + ")"
	}
	s, err := e.predicate(false)
	if err != nil {
		return "<invalid query: " + err.Error() + ">"
	}
	return s
}

func (p PathRef) compare(op Op, v any) Expr {
	e := Expr{kind: KindCompare, path: p, op: op}
	if err := p.Err(); err != nil {
		e.err = err
		return e
	}
	if ref, ok := v.(PathRef); ok {
		rhs, err := ref.lua()
		if err != nil {
			e.err = err
			return e
		}
		e.rhs = []string{rhs}
		e.rhsIsPath = true
		return e
	}
	lit, err := Literal(v)
	if err != nil {
		e.err = fmt.Errorf("%s %s: %w", p, op, err)
		return e
	}
	e.rhs = []string{lit}
	return e
}

// Eq matches documents where p equals v. v is a literal or another PathRef.
func (p PathRef) Eq(v any) Expr { return p.compare(OpEq, v) }

// Ne matches documents where p differs from v.
func (p PathRef) Ne(v any) Expr { return p.compare(OpNe, v) }

func (p PathRef) Lt(v any) Expr { return p.compare(OpLt, v) }
func (p PathRef) Le(v any) Expr { return p.compare(OpLe, v) }
func (p PathRef) Gt(v any) Expr { return p.compare(OpGt, v) }
func (p PathRef) Ge(v any) Expr { return p.compare(OpGe, v) }

// Any matches documents where p equals one of values. An empty set matches
// nothing.
func (p PathRef) Any(values ...any) Expr {
	return p.set(KindAny, values)
}

// NotAny matches documents where p equals none of values. An empty set
// matches everything.
func (p PathRef) NotAny(values ...any) Expr {
	return p.set(KindNotAny, values)
}

func (p PathRef) set(kind Kind, values []any) Expr {
	e := Expr{kind: kind, path: p}
	if err := p.Err(); err != nil {
		e.err = err
		return e
	}
	e.rhs = make([]string, 0, len(values))
	for _, v := range values {
		lit, err := Literal(v)
		if err != nil {
			e.err = fmt.Errorf("%s %s: %w", p, kind, err)
			return e
		}
		e.rhs = append(e.rhs, lit)
	}
	return e
}

// Contains matches documents whose list at p holds v.
//
// v is either a scalar literal, or an equality expression such as
// Path("name").Eq("t") matching list items whose field equals the literal.
// Any other expression yields ErrUnsupportedContainment.
func (p PathRef) Contains(v any) Expr {
	e := Expr{kind: KindContains, path: p}
	if err := p.Err(); err != nil {
		e.err = err
		return e
	}

	sub, ok := v.(Expr)
	if !ok {
		lit, err := Literal(v)
		if err != nil {
			e.err = fmt.Errorf("%s contains: %w", p, err)
			return e
		}
		e.rhs = []string{lit}
		return e
	}

	if err := sub.Err(); err != nil {
		e.err = err
		return e
	}
	if sub.kind != KindCompare || sub.op != OpEq || sub.rhsIsPath {
		what := sub.kind.String()
		if sub.kind == KindCompare {
			what = string(sub.op)
		}
		e.err = fmt.Errorf("%w: %s contains a %s expression", constants.ErrUnsupportedContainment, p, what)
		return e
	}
	e.rhs = []string{sub.rhs[0], quote(sub.path.format(1))}
	return e
}

// And matches documents matching every expression.
func And(exprs ...Expr) Expr {
	return Expr{kind: KindAnd, children: exprs}
}

// Or matches documents matching at least one expression.
func Or(exprs ...Expr) Expr {
	return Expr{kind: KindOr, children: exprs}
}

// Not negates e.
func Not(e Expr) Expr {
	return Expr{kind: KindNot, children: []Expr{e}}
}

// Raw wraps an already written Lua predicate.
func Raw(predicate string) Expr {
	return Expr{kind: KindRaw, text: predicate}
}

// Script sends a full Lua script instead of a predicate.
func Script(script string) Expr {
	return Expr{kind: KindScript, text: script}
}

// Stored references a server-side stored query by name.
func Stored(name string, args ...any) Expr {
	return Expr{kind: KindStored, text: name, args: args}
}

// predicate compiles e to a Lua boolean expression. Nested composite
// expressions are wrapped in parentheses.
func (e Expr) predicate(nested bool) (string, error) {
	if err := e.Err(); err != nil {
		return "", err
	}

	switch e.kind {
	case KindAll:
		if nested {
			return "true", nil
		}
		return "", nil
	case KindCompare:
		lhs, err := e.path.lua()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", lhs, e.op, e.rhs[0]), nil
	case KindAny, KindNotAny:
		return e.set(nested)
	case KindContains:
		lhs, err := e.path.lua()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("in_list(%s, %s)", lhs, strings.Join(e.rhs, ", ")), nil
	case KindAnd, KindOr:
		return e.join(nested)
	case KindNot:
		inner, err := e.children[0].predicate(false)
		if err != nil {
			return "", err
		}
		if inner == "" {
			inner = "true"
		}
		return "not (" + inner + ")", nil
	case KindRaw:
		if nested {
			return "(" + e.text + ")", nil
		}
		return e.text, nil
	case KindScript, KindStored:
		return "", fmt.Errorf("%w: %s", ErrNotComposable, e.kind)
	default:
		return "", fmt.Errorf("unknown expression kind %s", e.kind)
	}
}

func (e Expr) set(nested bool) (string, error) {
	op, joiner, empty := OpEq, " or ", "false"
	if e.kind == KindNotAny {
		op, joiner, empty = OpNe, " and ", "true"
	}
	if len(e.rhs) == 0 {
		return empty, nil
	}

	lhs, err := e.path.lua()
	if err != nil {
		return "", err
	}
	clauses := make([]string, len(e.rhs))
	for i, lit := range e.rhs {
		clauses[i] = fmt.Sprintf("%s %s %s", lhs, op, lit)
	}
	return wrap(strings.Join(clauses, joiner), nested && len(clauses) > 1), nil
}

func (e Expr) join(nested bool) (string, error) {
	joiner, empty := " and ", "true"
	if e.kind == KindOr {
		joiner, empty = " or ", "false"
	}
	if len(e.children) == 0 {
		return empty, nil
	}
	if len(e.children) == 1 {
		return e.children[0].predicate(nested)
	}

	parts := make([]string, len(e.children))
	for i, c := range e.children {
		s, err := c.predicate(true)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return wrap(strings.Join(parts, joiner), nested), nil
}

func wrap(s string, parens bool) string {
	if parens {
		return "(" + s + ")"
	}
	return s
}
