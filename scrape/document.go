package scrape

import "iter"

// Node is an evaluator specific reference into a Document. It is only valid
// while its Document is alive and is used solely to scope queries. A nil Node
// means the document root.
type Node any

// Document is a parsed, read-only tree that can evaluate queries.
type Document interface {
	// Evaluate runs query relative to scope, or from the document root when
	// scope is nil. The returned sequence is lazy and may be ranged more than
	// once; each pass re-runs the evaluation.
	Evaluate(query string, scope Node) (Matches, error)

	// NodeValue returns the textual value of a node produced by Evaluate.
	NodeValue(n Node) (string, error)
}

// Matches is an ordered sequence of query results.
type Matches = iter.Seq[Match]

type matchKind uint8

const (
	nodeKind matchKind = iota + 1
	scalarKind
)

// Match is one query result: either a node or an already resolved scalar.
type Match struct {
	kind   matchKind
	node   Node
	scalar any
}

// NodeMatch wraps a node result.
func NodeMatch(n Node) Match {
	return Match{kind: nodeKind, node: n}
}

// ScalarMatch wraps a scalar result. Evaluators pass strings, numbers or
// booleans; only strings can be bound to string shapes.
func ScalarMatch(v any) Match {
	return Match{kind: scalarKind, scalar: v}
}

// Node returns the matched node, if the match is one.
func (m Match) Node() (Node, bool) {
	return m.node, m.kind == nodeKind
}

// Scalar returns the scalar value, if the match is one.
func (m Match) Scalar() (any, bool) {
	return m.scalar, m.kind == scalarKind
}

// SliceMatches returns a restartable sequence over a fixed result slice.
func SliceMatches(ms []Match) Matches {
	return func(yield func(Match) bool) {
		for _, m := range ms {
			if !yield(m) {
				return
			}
		}
	}
}

func firstMatch(ms Matches) (Match, bool) {
	for m := range ms {
		return m, true
	}
	return Match{}, false
}
