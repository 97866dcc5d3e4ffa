// Package scrape binds query results from a parsed document to typed values.
//
// A Schema lists, per field, the query that locates the field's data and the
// shape the matches are coerced into. Materialize evaluates every query in
// declaration order against a Document (or a scope node within it), converts
// the matches, recurses into nested records and assembles one owned value.
// The first failing field aborts the call with an *ExtractionError naming the
// field path.
//
// Typed bindings are declared with struct tags and compiled once:
//
//	type Item struct {
//		URL   string  `json:"url" query:".//a/@href"`
//		Votes *string `json:"votes" query:"./div/text()"`
//	}
//
//	var items = scrape.MustBinder[Item]()
//
//	item, err := items.Materialize(doc, node)
//
// Schemas and Binders are immutable once built and may be shared between
// goroutines. Recursion depth follows the document depth and is limited only
// by the goroutine stack.
package scrape
