// Package transform provides named string transforms for field bindings.
//
// Each builtin is shape polymorphic (see scrape.StringFunc) and takes at most
// one argument:
//
//	trim            strip surrounding whitespace
//	collapse        trim and collapse inner whitespace runs to one space
//	lower, upper    change case
//	prefix <s>      prepend s
//	suffix <s>      append s
//	absurl <base>   resolve a relative URL against base
//	match <regexp>  keep the first submatch (or the whole match); no match fails
package transform

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/agentic-research/xscrape/scrape"
)

type builtin struct {
	arg  bool
	make func(arg string) (func(string) (string, error), error)
}

func pure(fn func(string) string) builtin {
	return builtin{make: func(string) (func(string) (string, error), error) {
		return func(s string) (string, error) { return fn(s), nil }, nil
	}}
}

var builtins = map[string]builtin{
	"trim":     pure(strings.TrimSpace),
	"collapse": pure(func(s string) string { return strings.Join(strings.Fields(s), " ") }),
	"lower":    pure(strings.ToLower),
	"upper":    pure(strings.ToUpper),
	"prefix": {arg: true, make: func(p string) (func(string) (string, error), error) {
		return func(s string) (string, error) { return p + s, nil }, nil
	}},
	"suffix": {arg: true, make: func(p string) (func(string) (string, error), error) {
		return func(s string) (string, error) { return s + p, nil }, nil
	}},
	"absurl": {arg: true, make: absURL},
	"match":  {arg: true, make: match},
}

// ErrUnknown is returned for names without a builtin.
var ErrUnknown = errors.New("unknown transform")

// Builtin returns the named transform bound to arg.
func Builtin(name, arg string) (scrape.Transform, error) {
	b, ok := builtins[name]
	if !ok {
		return scrape.Transform{}, fmt.Errorf("%w %q", ErrUnknown, name)
	}
	if b.arg && arg == "" {
		return scrape.Transform{}, fmt.Errorf("transform %s needs an argument", name)
	}
	if !b.arg && arg != "" {
		return scrape.Transform{}, fmt.Errorf("transform %s takes no argument", name)
	}
	fn, err := b.make(arg)
	if err != nil {
		return scrape.Transform{}, fmt.Errorf("transform %s: %w", name, err)
	}
	return scrape.StringFunc(name, fn), nil
}

// TakesArg reports whether the named builtin needs an argument.
func TakesArg(name string) bool { return builtins[name].arg }

// Names lists the builtins in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func absURL(base string) (func(string) (string, error), error) {
	b, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if !b.IsAbs() {
		return nil, fmt.Errorf("base %q is not absolute", base)
	}
	return func(s string) (string, error) {
		ref, err := url.Parse(strings.TrimSpace(s))
		if err != nil {
			return "", err
		}
		return b.ResolveReference(ref).String(), nil
	}, nil
}

func match(expr string) (func(string) (string, error), error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return func(s string) (string, error) {
		m := re.FindStringSubmatch(s)
		switch {
		case m == nil:
			return "", fmt.Errorf("%q does not match %s", s, expr)
		case len(m) > 1:
			return m[1], nil
		}
		return m[0], nil
	}, nil
}
