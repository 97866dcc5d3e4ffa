package scrape

import (
	"fmt"
	"reflect"
	"strconv"
)

// Mode controls how a field reacts to its query.
type Mode uint8

const (
	// Required fields fail with a *MissingError when nothing matches.
	Required Mode = iota
	// Optional fields bind nil when nothing matches.
	Optional
	// UseDefault fields never query and bind their Default value.
	UseDefault
	// Ignore fields never query and keep the zero value.
	Ignore
)

func (m Mode) String() string {
	switch m {
	case Required:
		return "required"
	case Optional:
		return "optional"
	case UseDefault:
		return "default"
	case Ignore:
		return "ignore"
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "required":
		return Required, nil
	case "optional":
		return Optional, nil
	case "default":
		return UseDefault, nil
	case "ignore":
		return Ignore, nil
	}
	return 0, fmt.Errorf("unknown field mode %q", s)
}

// Shape is the coercion target for a field's matches. It is fixed by the
// declared field type, never by the data.
type Shape uint8

const (
	Scalar         Shape = iota // string
	OptionalScalar              // *string
	StringList                  // []string
	NestedOne                   // one nested record, nil when optional and absent
	NestedList                  // []any of nested records
)

func (s Shape) String() string {
	switch s {
	case Scalar:
		return "scalar"
	case OptionalScalar:
		return "optional-scalar"
	case StringList:
		return "string-list"
	case NestedOne:
		return "nested"
	case NestedList:
		return "nested-list"
	}
	return "Shape(" + strconv.Itoa(int(s)) + ")"
}

func (s Shape) nested() bool { return s == NestedOne || s == NestedList }

// nilable reports whether a zero match result can be represented as nil.
func (s Shape) nilable() bool { return s == OptionalScalar || s == NestedOne }

var (
	stringType     = reflect.TypeFor[string]()
	stringPtrType  = reflect.TypeFor[*string]()
	stringListType = reflect.TypeFor[[]string]()
)

// valueType is the Go type the conversion layer produces for string shapes.
func (s Shape) valueType() reflect.Type {
	switch s {
	case Scalar:
		return stringType
	case OptionalScalar:
		return stringPtrType
	case StringList:
		return stringListType
	}
	return nil
}

// FieldSpec binds one field to a query.
type FieldSpec struct {
	// Name identifies the field in error paths and record keys.
	Name string
	// Index is the declaration position, set when the schema is defined.
	Index int

	Query string
	Mode  Mode
	Shape Shape

	// Nested is the schema of NestedOne and NestedList fields.
	Nested *Schema

	// Transform runs once on the coerced value. The zero Transform does
	// nothing.
	Transform Transform

	// Default is bound by UseDefault fields. It must match the shape's value
	// type; nil means the zero value.
	Default any
}

// Field starts a required scalar field; the With helpers adjust it.
func Field(name, query string) FieldSpec {
	return FieldSpec{Name: name, Query: query}
}

func (f FieldSpec) WithMode(m Mode) FieldSpec { f.Mode = m; return f }

func (f FieldSpec) WithShape(s Shape) FieldSpec { f.Shape = s; return f }

func (f FieldSpec) WithTransform(t Transform) FieldSpec { f.Transform = t; return f }

// WithNested sets the nested schema and shape (NestedOne or NestedList).
func (f FieldSpec) WithNested(s *Schema, shape Shape) FieldSpec {
	f.Nested, f.Shape = s, shape
	return f
}

// WithDefault turns the field into a UseDefault field.
func (f FieldSpec) WithDefault(v any) FieldSpec {
	f.Mode, f.Default = UseDefault, v
	return f
}

func (f *FieldSpec) queries() bool {
	return f.Mode == Required || f.Mode == Optional
}

func (f *FieldSpec) validate() error {
	if f.Name == "" {
		return fmt.Errorf("field %d: empty name", f.Index)
	}
	if f.Mode > Ignore {
		return fmt.Errorf("field %s: invalid mode %v", f.Name, f.Mode)
	}
	if f.Shape > NestedList {
		return fmt.Errorf("field %s: invalid shape %v", f.Name, f.Shape)
	}
	if f.queries() && f.Query == "" {
		return fmt.Errorf("field %s: %s field needs a query", f.Name, f.Mode)
	}
	if f.Mode == Optional && !f.Shape.nilable() {
		return fmt.Errorf("field %s: optional field needs a nilable shape, got %s", f.Name, f.Shape)
	}
	if f.Shape.nested() && f.Nested == nil {
		return fmt.Errorf("field %s: %s field needs a schema", f.Name, f.Shape)
	}
	if !f.Transform.IsZero() {
		if !f.queries() {
			return fmt.Errorf("field %s: transform on %s field", f.Name, f.Mode)
		}
		if f.Shape.nested() {
			return fmt.Errorf("field %s: transform on %s field", f.Name, f.Shape)
		}
		if err := f.Transform.accepts(f.Shape.valueType()); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	if f.Mode == UseDefault && f.Default != nil {
		if vt := f.Shape.valueType(); vt == nil || reflect.TypeOf(f.Default) != vt {
			return fmt.Errorf("field %s: default %T does not fit %s", f.Name, f.Default, f.Shape)
		}
	}
	return nil
}
