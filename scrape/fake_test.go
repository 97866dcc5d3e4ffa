package scrape

import (
	"errors"
	"strconv"
	"strings"
)

// tnode is a tiny tree used as a test Document.
type tnode struct {
	name     string
	text     string
	attrs    map[string]string
	children []*tnode
	opaque   bool // NodeValue fails
}

func el(name, text string, children ...*tnode) *tnode {
	return &tnode{name: name, text: text, children: children}
}

func (n *tnode) attr(k, v string) *tnode {
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	n.attrs[k] = v
	return n
}

// tdoc evaluates slash separated child name paths. A final "@name" step
// yields attribute values as string scalars, "=N" yields one number scalar
// and a leading "!" makes evaluation fail.
type tdoc struct {
	root  *tnode
	evals map[string]int
}

func newDoc(children ...*tnode) *tdoc {
	return &tdoc{root: el("#root", "", children...), evals: make(map[string]int)}
}

var errBadQuery = errors.New("bad query")

func (d *tdoc) Evaluate(query string, scope Node) (Matches, error) {
	d.evals[query]++
	if strings.HasPrefix(query, "!") {
		return nil, errBadQuery
	}
	if num, ok := strings.CutPrefix(query, "="); ok {
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return nil, err
		}
		return SliceMatches([]Match{ScalarMatch(f)}), nil
	}
	start := d.root
	if scope != nil {
		start = scope.(*tnode)
	}
	return func(yield func(Match) bool) {
		cur := []*tnode{start}
		steps := strings.Split(query, "/")
		for i, step := range steps {
			if attr, ok := strings.CutPrefix(step, "@"); ok && i == len(steps)-1 {
				for _, n := range cur {
					if v, ok := n.attrs[attr]; ok {
						if !yield(ScalarMatch(v)) {
							return
						}
					}
				}
				return
			}
			var next []*tnode
			for _, n := range cur {
				for _, c := range n.children {
					if c.name == step {
						next = append(next, c)
					}
				}
			}
			cur = next
		}
		for _, n := range cur {
			if !yield(NodeMatch(n)) {
				return
			}
		}
	}, nil
}

func (d *tdoc) NodeValue(n Node) (string, error) {
	tn := n.(*tnode)
	if tn.opaque {
		return "", errors.New("opaque node")
	}
	return tn.text, nil
}
