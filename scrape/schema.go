package scrape

import (
	"errors"
	"fmt"
	"reflect"
)

// Record is the value assembled by schemas built with NewRecordSchema. Keys
// are field names; values follow the shape representation (string, *string,
// []string, Record or nil, []any).
type Record map[string]any

// Schema is the ordered list of field bindings for one target type. A Schema
// is defined once and read-only afterwards.
type Schema struct {
	name     string
	typ      reflect.Type // nil for Record schemas
	fields   []FieldSpec
	defined  bool
	assemble func(values []any) any
}

// DeclareRecord returns an undefined Record schema. Declaring first lets
// fields refer to schemas, including the schema itself, that are defined
// later.
func DeclareRecord(name string) *Schema {
	return &Schema{name: name}
}

// NewRecordSchema declares and defines a Record schema in one step.
func NewRecordSchema(name string, fields ...FieldSpec) (*Schema, error) {
	s := DeclareRecord(name)
	if err := s.Define(fields...); err != nil {
		return nil, err
	}
	return s, nil
}

// Define validates fields and freezes the schema. It fails if called twice.
func (s *Schema) Define(fields ...FieldSpec) error {
	if s.defined {
		return fmt.Errorf("schema %s: already defined", s.name)
	}
	if err := s.setFields(fields); err != nil {
		return err
	}
	s.assemble = func(values []any) any {
		rec := make(Record, len(s.fields))
		for i := range s.fields {
			if s.fields[i].Mode == Ignore {
				continue
			}
			rec[s.fields[i].Name] = values[i]
		}
		return rec
	}
	s.defined = true
	return nil
}

func (s *Schema) setFields(fields []FieldSpec) error {
	seen := make(map[string]bool, len(fields))
	out := make([]FieldSpec, len(fields))
	var errs []error
	for i, f := range fields {
		f.Index = i
		if err := f.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("field %s: duplicate name", f.Name))
			continue
		}
		seen[f.Name] = true
		out[i] = f
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("schema %s: %w", s.name, err)
	}
	s.fields = out
	return nil
}

// Name returns the record or Go type name.
func (s *Schema) Name() string { return s.name }

// Type returns the Go struct type bound by a Binder schema, or nil for Record
// schemas.
func (s *Schema) Type() reflect.Type { return s.typ }

// Defined reports whether Define has run.
func (s *Schema) Defined() bool { return s.defined }

// Fields returns a copy of the field bindings in declaration order.
func (s *Schema) Fields() []FieldSpec {
	return append([]FieldSpec(nil), s.fields...)
}
