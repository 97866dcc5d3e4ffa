package scrape

import (
	"fmt"
	"reflect"
	"strings"
)

// Transform post-processes a coerced field value. It runs once per queried
// field, after shape coercion and before the value is assembled.
type Transform struct {
	name string
	in   reflect.Type // nil accepts every string shape
	fn   func(any) (any, error)
	err  error
}

// Fn adapts a typed function. The field's shape must produce V.
func Fn[V string | *string | []string](name string, fn func(V) (V, error)) Transform {
	return Transform{
		name: name,
		in:   reflect.TypeFor[V](),
		fn: func(v any) (any, error) {
			out, err := fn(v.(V))
			if err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

// StringFunc lifts a string function over every string shape: the value of a
// Scalar, the pointee of a non-nil OptionalScalar and each StringList element.
func StringFunc(name string, fn func(string) (string, error)) Transform {
	return Transform{
		name: name,
		fn: func(v any) (any, error) {
			switch x := v.(type) {
			case string:
				out, err := fn(x)
				if err != nil {
					return nil, err
				}
				return out, nil
			case *string:
				if x == nil {
					return x, nil
				}
				out, err := fn(*x)
				if err != nil {
					return nil, err
				}
				return &out, nil
			case []string:
				out := make([]string, len(x))
				for i, s := range x {
					var err error
					if out[i], err = fn(s); err != nil {
						return nil, fmt.Errorf("element %d: %w", i, err)
					}
				}
				return out, nil
			}
			return nil, fmt.Errorf("unsupported value %T", v)
		},
	}
}

// Chain runs ts in order, feeding each result to the next transform.
func Chain(ts ...Transform) Transform {
	var live []Transform
	for _, t := range ts {
		if !t.IsZero() {
			live = append(live, t)
		}
	}
	switch len(live) {
	case 0:
		return Transform{}
	case 1:
		return live[0]
	}

	c := Transform{}
	names := make([]string, len(live))
	for i, t := range live {
		names[i] = t.name
		if t.err != nil && c.err == nil {
			c.err = t.err
		}
		if t.in == nil {
			continue
		}
		if c.in == nil {
			c.in = t.in
		} else if c.in != t.in && c.err == nil {
			c.err = fmt.Errorf("transform %s takes %v, previous step takes %v", t.name, t.in, c.in)
		}
	}
	c.name = strings.Join(names, "|")
	c.fn = func(v any) (any, error) {
		for _, t := range live {
			var err error
			if v, err = t.fn(v); err != nil {
				return nil, fmt.Errorf("%s: %w", t.name, err)
			}
		}
		return v, nil
	}
	return c
}

// IsZero reports whether t is the no-op transform.
func (t Transform) IsZero() bool { return t.fn == nil }

// Name returns the name the transform was built with.
func (t Transform) Name() string { return t.name }

func (t Transform) accepts(vt reflect.Type) error {
	if t.err != nil {
		return t.err
	}
	if t.in != nil && t.in != vt {
		return fmt.Errorf("transform %s takes %v, field holds %v", t.name, t.in, vt)
	}
	return nil
}

func (t Transform) apply(v any) (any, error) {
	out, err := t.fn(v)
	if err != nil {
		return nil, &ConversionError{Reason: "transform " + t.name, Err: err}
	}
	return out, nil
}
