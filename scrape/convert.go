package scrape

import "fmt"

// coerce converts the matches of one field into the field's shape. Nested
// shapes re-enter the materializer with each matched node as scope.
func coerce(f *FieldSpec, doc Document, ms Matches) (any, error) {
	switch f.Shape {
	case Scalar:
		m, ok := firstMatch(ms)
		if !ok {
			return nil, &MissingError{Query: f.Query}
		}
		return stringify(doc, m)

	case OptionalScalar:
		m, ok := firstMatch(ms)
		if !ok {
			if f.Mode == Required {
				return nil, &MissingError{Query: f.Query}
			}
			return (*string)(nil), nil
		}
		// A present match that cannot be read is an error, not an absence.
		s, err := stringify(doc, m)
		if err != nil {
			return nil, err
		}
		return &s, nil

	case StringList:
		out := make([]string, 0)
		for m := range ms {
			s, err := stringify(doc, m)
			if err != nil {
				return nil, withPath(len(out), err)
			}
			out = append(out, s)
		}
		return out, nil

	case NestedOne:
		m, ok := firstMatch(ms)
		if !ok {
			if f.Mode == Optional {
				return nil, nil
			}
			return nil, &MissingError{Query: f.Query}
		}
		n, err := scopeOf(m)
		if err != nil {
			return nil, err
		}
		return f.Nested.materialize(doc, n)

	case NestedList:
		out := make([]any, 0)
		for m := range ms {
			n, err := scopeOf(m)
			if err != nil {
				return nil, withPath(len(out), err)
			}
			v, err := f.Nested.materialize(doc, n)
			if err != nil {
				return nil, withPath(len(out), err)
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, &ConversionError{Reason: fmt.Sprintf("unknown shape %v", f.Shape)}
}

// stringify reads a node through the evaluator; string scalars pass through.
func stringify(doc Document, m Match) (string, error) {
	if n, ok := m.Node(); ok {
		s, err := doc.NodeValue(n)
		if err != nil {
			return "", &ConversionError{Reason: "node has no string value", Err: err}
		}
		return s, nil
	}
	v, _ := m.Scalar()
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", &ConversionError{Reason: describe(v) + " result is not a string"}
}

func scopeOf(m Match) (Node, error) {
	if n, ok := m.Node(); ok {
		return n, nil
	}
	v, _ := m.Scalar()
	return nil, &ConversionError{Reason: describe(v) + " result where a node is required"}
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64, float32, int, int64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "empty"
	}
	return fmt.Sprintf("%T", v)
}
