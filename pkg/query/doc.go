// Package query builds BlobStash document queries.
//
// Expressions are assembled with explicit builder methods and compiled into
// the Lua predicate the server evaluates against each document, for example:
//
//	query.And(
//		query.Path("persons[0].name").Eq("thomas"),
//		query.Path("age").Ge(18),
//	)
//
// compiles to
//
//	doc.persons[1].name == "thomas" and doc.age >= 18
//
// Path indices are zero-based in Go and one-based once compiled.
//
// The builder supports:
//   - comparisons against literals or other paths (Eq, Ne, Lt, Le, Gt, Ge)
//   - membership over a literal set (Any, NotAny)
//   - list containment (Contains)
//   - logical composition (And, Or, Not)
//   - raw Lua scripts and server-side stored queries (Script, Stored)
package query
