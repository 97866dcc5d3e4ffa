package codedoc

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// SyntaxError locates an ERROR or MISSING node in a parsed tree. Tree-sitter
// recovers from syntax errors, so documents with errors can still be bound.
type SyntaxError struct {
	Line   uint32 // 0-indexed
	Column uint32 // 0-indexed
	Text   string // source of the error node, truncated
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: syntax error near %q", e.Line+1, e.Column+1, e.Text)
}

// SyntaxErrors returns every error location in the tree, in document order.
func (d *Document) SyntaxErrors() []SyntaxError {
	if !d.root.HasError() {
		return nil
	}
	var errs []SyntaxError
	d.collectErrors(d.root, &errs)
	return errs
}

// collectErrors does not descend into error nodes.
func (d *Document) collectErrors(node *sitter.Node, errs *[]SyntaxError) {
	if node.IsError() || node.IsMissing() {
		text, _ := d.NodeValue(node)
		if len(text) > 32 {
			text = text[:32]
		}
		*errs = append(*errs, SyntaxError{
			Line:   node.StartPoint().Row,
			Column: node.StartPoint().Column,
			Text:   text,
		})
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			d.collectErrors(child, errs)
		}
	}
}
