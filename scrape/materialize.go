package scrape

import "fmt"

// Materialize binds s against doc, scoped to scope when it is non-nil. The
// result is a Record for record schemas and a struct value for Binder
// schemas. On failure no partial value is returned.
func Materialize(s *Schema, doc Document, scope Node) (any, error) {
	return s.materialize(doc, scope)
}

// MaterializeAll evaluates container relative to scope and binds s once per
// matched node, in match order. Errors are prefixed with the match index.
func MaterializeAll(s *Schema, doc Document, scope Node, container string) ([]any, error) {
	ms, err := doc.Evaluate(container, scope)
	if err != nil {
		return nil, &ExtractionError{Err: &QueryError{Query: container, Err: err}}
	}
	out := make([]any, 0)
	for m := range ms {
		n, err := scopeOf(m)
		if err != nil {
			return nil, withPath(len(out), err)
		}
		v, err := s.materialize(doc, n)
		if err != nil {
			return nil, withPath(len(out), err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Schema) materialize(doc Document, scope Node) (any, error) {
	if !s.defined {
		return nil, fmt.Errorf("%s: %w", s.name, ErrUndefined)
	}
	values := make([]any, len(s.fields))
	for i := range s.fields {
		f := &s.fields[i]
		v, err := bindField(f, doc, scope)
		if err != nil {
			return nil, withPath(f.Name, err)
		}
		values[i] = v
	}
	return s.assemble(values), nil
}

func bindField(f *FieldSpec, doc Document, scope Node) (any, error) {
	switch f.Mode {
	case Ignore:
		return nil, nil
	case UseDefault:
		return f.defaultValue(), nil
	}

	ms, err := doc.Evaluate(f.Query, scope)
	if err != nil {
		return nil, &QueryError{Query: f.Query, Err: err}
	}
	v, err := coerce(f, doc, ms)
	if err != nil {
		return nil, err
	}
	if f.Transform.IsZero() {
		return v, nil
	}
	return f.Transform.apply(v)
}

// defaultValue returns a fresh copy of the default so bound values never
// share memory with the schema.
func (f *FieldSpec) defaultValue() any {
	switch d := f.Default.(type) {
	case string:
		return d
	case *string:
		if d == nil {
			return d
		}
		s := *d
		return &s
	case []string:
		return append([]string(nil), d...)
	}
	switch f.Shape {
	case Scalar:
		return ""
	case OptionalScalar:
		return (*string)(nil)
	case StringList:
		return []string(nil)
	case NestedList:
		return []any(nil)
	}
	return nil
}
