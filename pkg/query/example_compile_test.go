package query_test

import (
	"errors"
	"fmt"

	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/query"
)

func ExampleCompile() {
	q := query.And(
		query.Path("persons[0].name").Eq("thomas"),
		query.Or(
			query.Path("age").Ge(18),
			query.Path("guardian").Ne(nil),
		),
	)

	p, err := query.Compile(q)
	if err != nil {
		panic(err)
	}
	fmt.Println(p.Query)
	// Output:
	// doc.persons[1].name == "thomas" and (doc.age >= 18 or doc.guardian ~= nil)
}

func ExamplePathRef_Contains() {
	tagged := query.Path("tags").Contains("go")
	authored := query.Path("authors").Contains(query.Path("name").Eq("t"))
	ranged := query.Path("authors").Contains(query.Path("age").Gt(30))

	fmt.Println(tagged)
	fmt.Println(authored)
	fmt.Println(errors.Is(ranged.Err(), constants.ErrUnsupportedContainment))
	// Output:
	// in_list(doc.tags, "go")
	// in_list(doc.authors, "t", "name")
	// true
}

func ExamplePathRef_NotAny() {
	fmt.Println(query.Path("status").NotAny("draft", "deleted"))
	// Output:
	// doc.status ~= "draft" and doc.status ~= "deleted"
}

func ExampleStored() {
	p := query.MustCompile(query.Stored("by_author", "thomas"))
	fmt.Println(p.StoredQuery, p.StoredQueryArgs)
	// Output:
	// by_author ["thomas"]
}
