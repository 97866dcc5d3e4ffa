// Package xpathdoc evaluates XPath 1.0 queries over HTML and XML documents.
//
// Both formats are navigated through antchfx/xpath. Node-set results are
// returned as node matches holding a copied navigator, which also serves as
// the scope for relative queries; number, string and boolean results are
// returned as a single scalar match.
package xpathdoc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/agentic-research/xscrape/scrape"
)

// Document is a parsed HTML or XML tree.
type Document struct {
	root xpath.NodeNavigator
}

// ParseHTML parses an HTML document. The HTML parser is lenient; malformed
// markup is repaired rather than rejected.
func ParseHTML(r io.Reader) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return &Document{root: htmlquery.CreateXPathNavigator(root)}, nil
}

// ParseXML parses a well-formed XML document.
func ParseXML(r io.Reader) (*Document, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: xmlquery.CreateXPathNavigator(root)}, nil
}

// HTML parses data as HTML.
func HTML(data []byte) (*Document, error) { return ParseHTML(bytes.NewReader(data)) }

// XML parses data as XML.
func XML(data []byte) (*Document, error) { return ParseXML(bytes.NewReader(data)) }

// Evaluate implements scrape.Document. The expression is compiled per call;
// compiled expressions carry iteration state and are not shared.
func (d *Document) Evaluate(query string, scope scrape.Node) (scrape.Matches, error) {
	expr, err := xpath.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	start := d.root
	if scope != nil {
		nav, ok := scope.(xpath.NodeNavigator)
		if !ok {
			return nil, fmt.Errorf("scope must be an xpath node, got %T", scope)
		}
		start = nav
	}

	return func(yield func(scrape.Match) bool) {
		switch v := expr.Evaluate(start.Copy()).(type) {
		case *xpath.NodeIterator:
			for v.MoveNext() {
				if !yield(scrape.NodeMatch(v.Current().Copy())) {
					return
				}
			}
		default:
			yield(scrape.ScalarMatch(v))
		}
	}, nil
}

// NodeValue implements scrape.Document: attribute values, text content, and
// the inner text of elements.
func (d *Document) NodeValue(n scrape.Node) (string, error) {
	nav, ok := n.(xpath.NodeNavigator)
	if !ok {
		return "", fmt.Errorf("not an xpath node: %T", n)
	}
	return nav.Value(), nil
}

var _ scrape.Document = (*Document)(nil)
