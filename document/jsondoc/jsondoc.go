// Package jsondoc evaluates JSONPath queries over decoded JSON values.
package jsondoc

import (
	"fmt"
	"strconv"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/xscrape/scrape"
)

// Document wraps a decoded JSON value (maps, slices and scalars as produced
// by ojg or encoding/json).
type Document struct {
	root any
}

// node is the scope handle for a matched value. Wrapping keeps a JSON null
// distinct from the nil "no scope" Node.
type node struct {
	value any
}

// Parse decodes JSON text.
func Parse(data []byte) (*Document, error) {
	v, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return &Document{root: v}, nil
}

// New wraps an already decoded value.
func New(v any) *Document {
	return &Document{root: v}
}

// Evaluate implements scrape.Document. Every result is a node match; both
// "$" and "@" refer to the scope. JSON nulls are not matched, so a null
// member reads as absent.
func (d *Document) Evaluate(query string, scope scrape.Node) (scrape.Matches, error) {
	x, err := jp.ParseString(query)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", query, err)
	}
	target := d.root
	if scope != nil {
		n, ok := scope.(node)
		if !ok {
			return nil, fmt.Errorf("scope must be a json node, got %T", scope)
		}
		target = n.value
	}

	return func(yield func(scrape.Match) bool) {
		for _, r := range x.Get(target) {
			if r == nil {
				continue
			}
			if !yield(scrape.NodeMatch(node{value: r})) {
				return
			}
		}
	}, nil
}

// NodeValue implements scrape.Document. Strings, numbers and booleans have a
// value; null, objects and arrays do not.
func (d *Document) NodeValue(n scrape.Node) (string, error) {
	jn, ok := n.(node)
	if !ok {
		return "", fmt.Errorf("not a json node: %T", n)
	}
	switch v := jn.value.(type) {
	case string:
		return v, nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case nil:
		return "", fmt.Errorf("null has no value")
	case map[string]any:
		return "", fmt.Errorf("object has no scalar value")
	case []any:
		return "", fmt.Errorf("array has no scalar value")
	}
	return "", fmt.Errorf("unsupported json value %T", jn.value)
}

var _ scrape.Document = (*Document)(nil)
