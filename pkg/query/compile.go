package query

import (
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/blobstash/blobstash.go/pkg/constants"
)

// Params is a compiled query. At most one of Query, Script and StoredQuery
// is set.
type Params struct {
	Query           string
	Script          string
	StoredQuery     string
	StoredQueryArgs string
}

// Compile compiles e into request parameters.
func Compile(e Expr) (Params, error) {
	if err := e.Err(); err != nil {
		return Params{}, err
	}

	switch e.kind {
	case KindScript:
		return Params{Script: e.text}, nil
	case KindStored:
		args := e.args
		if args == nil {
			args = []any{}
		}
		data, err := json.Marshal(args)
		if err != nil {
			return Params{}, err
		}
		return Params{StoredQuery: e.text, StoredQueryArgs: string(data)}, nil
	}

	predicate, err := e.predicate(false)
	if err != nil {
		return Params{}, err
	}
	return Params{Query: predicate}, nil
}

// MustCompile is Compile for expressions known to be valid.
func MustCompile(e Expr) Params {
	p, err := Compile(e)
	if err != nil {
		panic(err)
	}
	return p
}

// Values returns the query string parameters of a page request. A zero asOf
// is sent as an empty value.
func (p Params) Values(asOf time.Time, cursor string, limit int) url.Values {
	v := url.Values{}
	v.Set("query", p.Query)
	v.Set("script", p.Script)
	v.Set("stored_query", p.StoredQuery)
	v.Set("stored_query_args", p.StoredQueryArgs)
	v.Set("as_of", FormatAsOf(asOf))
	v.Set("cursor", cursor)
	v.Set("limit", strconv.Itoa(limit))
	return v
}

// FormatAsOf formats a point in time as the UTC wall-clock string the
// server expects.
func FormatAsOf(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(constants.AsOfLayout)
}
