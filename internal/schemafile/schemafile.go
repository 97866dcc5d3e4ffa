// Package schemafile loads record declarations from HCL schema files and
// compiles them into scrape schemas.
package schemafile

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/agentic-research/xscrape/api"
	"github.com/agentic-research/xscrape/scrape"
	"github.com/agentic-research/xscrape/transform"
)

// Load reads and decodes a schema file. Files ending in .json use the HCL
// JSON syntax; everything else is native HCL.
func Load(path string) (*api.SchemaFile, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Decode(path, src)
}

// Decode decodes schema source; filename selects the syntax.
func Decode(filename string, src []byte) (*api.SchemaFile, error) {
	if !strings.HasSuffix(filename, ".json") && !strings.HasSuffix(filename, ".hcl") {
		filename += ".hcl"
	}
	var f api.SchemaFile
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &f, nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TypeRef is a parsed field type.
type TypeRef struct {
	Shape   scrape.Shape
	Record  string // nested record name, empty for string shapes
	Pointer bool
}

// ParseType parses string, *string, []string, R, *R or []R.
func ParseType(s string) (TypeRef, error) {
	switch s {
	case "string":
		return TypeRef{Shape: scrape.Scalar}, nil
	case "*string":
		return TypeRef{Shape: scrape.OptionalScalar, Pointer: true}, nil
	case "[]string":
		return TypeRef{Shape: scrape.StringList}, nil
	}
	ref := TypeRef{Shape: scrape.NestedOne}
	name := s
	switch {
	case strings.HasPrefix(s, "*"):
		ref.Pointer, name = true, s[1:]
	case strings.HasPrefix(s, "[]"):
		ref.Shape, name = scrape.NestedList, s[2:]
	}
	if !identRe.MatchString(name) {
		return TypeRef{}, fmt.Errorf("invalid type %q", s)
	}
	ref.Record = name
	return ref, nil
}

// Set is a compiled schema file.
type Set struct {
	file    *api.SchemaFile
	schemas map[string]*scrape.Schema
	records map[string]*api.Record
}

// Compile validates f and builds one Record schema per declared record.
// All problems are reported together.
func Compile(f *api.SchemaFile) (*Set, error) {
	s := &Set{
		file:    f,
		schemas: make(map[string]*scrape.Schema, len(f.Records)),
		records: make(map[string]*api.Record, len(f.Records)),
	}
	var errs []error
	for i := range f.Records {
		r := &f.Records[i]
		if !identRe.MatchString(r.Name) {
			errs = append(errs, fmt.Errorf("record %q: invalid name", r.Name))
			continue
		}
		if _, dup := s.schemas[r.Name]; dup {
			errs = append(errs, fmt.Errorf("record %s: declared twice", r.Name))
			continue
		}
		s.schemas[r.Name] = scrape.DeclareRecord(r.Name)
		s.records[r.Name] = r
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for i := range f.Records {
		r := &f.Records[i]
		fields := make([]scrape.FieldSpec, 0, len(r.Fields))
		for _, fd := range r.Fields {
			if !identRe.MatchString(fd.Name) {
				errs = append(errs, fmt.Errorf("record %s field %q: invalid name", r.Name, fd.Name))
				continue
			}
			spec, err := s.field(fd)
			if err != nil {
				errs = append(errs, fmt.Errorf("record %s field %s: %w", r.Name, fd.Name, err))
				continue
			}
			fields = append(fields, spec)
		}
		if len(fields) == len(r.Fields) {
			if err := s.schemas[r.Name].Define(fields...); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

func (s *Set) field(fd api.Field) (scrape.FieldSpec, error) {
	ref, err := ParseType(fd.Type)
	if err != nil {
		return scrape.FieldSpec{}, err
	}
	spec := scrape.FieldSpec{Name: fd.Name, Shape: ref.Shape}
	if fd.Query != nil {
		spec.Query = *fd.Query
	}
	if ref.Record != "" {
		nested, ok := s.schemas[ref.Record]
		if !ok {
			return scrape.FieldSpec{}, fmt.Errorf("unknown record %q", ref.Record)
		}
		spec.Nested = nested
	}

	switch {
	case fd.Mode != nil:
		if spec.Mode, err = scrape.ParseMode(*fd.Mode); err != nil {
			return scrape.FieldSpec{}, err
		}
	case ref.Pointer:
		spec.Mode = scrape.Optional
	default:
		spec.Mode = scrape.Required
	}

	if fd.Default != nil {
		if spec.Mode != scrape.UseDefault {
			return scrape.FieldSpec{}, fmt.Errorf("default needs mode = \"default\"")
		}
		switch ref.Shape {
		case scrape.Scalar:
			spec.Default = *fd.Default
		case scrape.OptionalScalar:
			d := *fd.Default
			spec.Default = &d
		default:
			return scrape.FieldSpec{}, fmt.Errorf("default on %s field", ref.Shape)
		}
	}

	steps := make([]scrape.Transform, 0, len(fd.Transforms))
	for _, td := range fd.Transforms {
		arg := ""
		if td.Arg != nil {
			arg = *td.Arg
		}
		t, err := transform.Builtin(td.Name, arg)
		if err != nil {
			return scrape.FieldSpec{}, err
		}
		steps = append(steps, t)
	}
	spec.Transform = scrape.Chain(steps...)
	return spec, nil
}

// Schema returns the compiled schema of a record.
func (s *Set) Schema(name string) (*scrape.Schema, bool) {
	sc, ok := s.schemas[name]
	return sc, ok
}

// Container returns the record's default container query, if any.
func (s *Set) Container(name string) string {
	if r, ok := s.records[name]; ok && r.Container != nil {
		return *r.Container
	}
	return ""
}

// Names lists the records in declaration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.file.Records))
	for i, r := range s.file.Records {
		names[i] = r.Name
	}
	return names
}

// File returns the decoded schema file.
func (s *Set) File() *api.SchemaFile { return s.file }
