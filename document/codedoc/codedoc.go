// Package codedoc evaluates tree-sitter queries over parsed source code.
//
// Every capture of every query match becomes one node match, in cursor
// order, so a query should usually capture a single node per pattern:
//
//	(function_declaration name: (identifier) @name)
//
// The selector "$" matches the scope node itself.
package codedoc

import (
	"context"
	"fmt"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/xscrape/scrape"
)

// Document is a parsed syntax tree together with its source.
type Document struct {
	Lang   string
	tree   *sitter.Tree
	root   *sitter.Node
	source []byte
	lang   *sitter.Language
}

// Parse parses source with the given grammar.
func Parse(ctx context.Context, source []byte, lang *sitter.Language) (*Document, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &Document{tree: tree, root: tree.RootNode(), source: source, lang: lang}, nil
}

// ParseFile picks the grammar from the file extension of name.
func ParseFile(ctx context.Context, name string, source []byte) (*Document, error) {
	langName, lang, ok := DetectLanguage(filepath.Ext(name))
	if !ok {
		return nil, fmt.Errorf("no grammar for %s", name)
	}
	doc, err := Parse(ctx, source, lang)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	doc.Lang = langName
	return doc, nil
}

// Close releases the syntax tree. Nodes from the document must not be used
// afterwards.
func (d *Document) Close() {
	d.tree.Close()
}

// Evaluate implements scrape.Document.
func (d *Document) Evaluate(query string, scope scrape.Node) (scrape.Matches, error) {
	start := d.root
	if scope != nil {
		n, ok := scope.(*sitter.Node)
		if !ok {
			return nil, fmt.Errorf("scope must be a *sitter.Node, got %T", scope)
		}
		start = n
	}

	// "$" is a passthrough selector: the scope itself.
	if query == "$" {
		return scrape.SliceMatches([]scrape.Match{scrape.NodeMatch(start)}), nil
	}

	// Compile once to report bad queries up front. Each pass over the
	// sequence compiles its own copy and closes it when done.
	q, err := sitter.NewQuery([]byte(query), d.lang)
	if err != nil {
		return nil, fmt.Errorf("invalid query '%s': %w", query, err)
	}
	q.Close()

	return func(yield func(scrape.Match) bool) {
		q, err := sitter.NewQuery([]byte(query), d.lang)
		if err != nil {
			return
		}
		defer q.Close()
		qc := sitter.NewQueryCursor()
		defer qc.Close()
		qc.Exec(q, start)
		for {
			m, ok := qc.NextMatch()
			if !ok {
				return
			}
			m = qc.FilterPredicates(m, d.source)
			for _, c := range m.Captures {
				if !yield(scrape.NodeMatch(c.Node)) {
					return
				}
			}
		}
	}, nil
}

// NodeValue implements scrape.Document: the source text the node spans.
func (d *Document) NodeValue(n scrape.Node) (string, error) {
	sn, ok := n.(*sitter.Node)
	if !ok || sn == nil {
		return "", fmt.Errorf("not a syntax node: %T", n)
	}
	start, end := sn.StartByte(), sn.EndByte()
	if end > uint32(len(d.source)) || start > end {
		return "", fmt.Errorf("node range %d:%d outside source", start, end)
	}
	return string(d.source[start:end]), nil
}

var _ scrape.Document = (*Document)(nil)
