package scrape

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
)

// Option configures NewBinder.
type Option func(*compiler)

// WithTransforms makes named transforms available to `transform=` tag options.
func WithTransforms(ts map[string]Transform) Option {
	return func(c *compiler) {
		for name, t := range ts {
			c.transforms[name] = t
		}
	}
}

// WithLogger sets the logger used while compiling schemas.
func WithLogger(l *slog.Logger) Option {
	return func(c *compiler) { c.log = l }
}

// Binder is the compiled schema of the struct type T.
//
// Fields are declared with tags:
//
//	query:"<query>"                 query evaluated for the field
//	scrape:"-"                      ignore the field
//	scrape:"required" / "optional"  override the mode implied by the type
//	scrape:"default" / "default=x"  never query, bind the zero value or x
//	scrape:"transform=<name>"       run a transform from WithTransforms
//
// The field identifier is the json tag name when present. Field types map to
// shapes: string to Scalar, *string to OptionalScalar, []string to
// StringList, S and *S to NestedOne and []S to NestedList, where S is a
// struct type compiled the same way. Pointer fields default to Optional.
type Binder[T any] struct {
	schema *Schema
}

// NewBinder compiles T and every struct type reachable from its fields.
func NewBinder[T any](opts ...Option) (*Binder[T], error) {
	c := &compiler{
		cache:      make(map[reflect.Type]*Schema),
		transforms: make(map[string]Transform),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	t := reflect.TypeFor[T]()
	s, err := c.compile(t)
	if err != nil {
		return nil, fmt.Errorf("scrape: bind %v: %w", t, err)
	}
	return &Binder[T]{schema: s}, nil
}

// MustBinder is NewBinder for package level variables; it panics on error.
func MustBinder[T any](opts ...Option) *Binder[T] {
	b, err := NewBinder[T](opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Schema returns the compiled schema of T.
func (b *Binder[T]) Schema() *Schema { return b.schema }

// Materialize binds one T from doc, scoped to scope when it is non-nil.
func (b *Binder[T]) Materialize(doc Document, scope Node) (T, error) {
	v, err := b.schema.materialize(doc, scope)
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// MaterializeAll binds one T per node matched by container.
func (b *Binder[T]) MaterializeAll(doc Document, scope Node, container string) ([]T, error) {
	vs, err := MaterializeAll(b.schema, doc, scope, container)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(vs))
	for i, v := range vs {
		out[i] = v.(T)
	}
	return out, nil
}

type compiler struct {
	cache      map[reflect.Type]*Schema
	transforms map[string]Transform
	log        *slog.Logger
}

func (c *compiler) compile(t reflect.Type) (*Schema, error) {
	if s, ok := c.cache[t]; ok {
		return s, nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%v is not a struct", t)
	}
	s := &Schema{name: t.Name(), typ: t}
	c.cache[t] = s

	var (
		fields []FieldSpec
		index  []int
	)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		f, err := c.field(sf)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), sf.Name, err)
		}
		fields = append(fields, f)
		index = append(index, i)
	}
	if err := s.setFields(fields); err != nil {
		return nil, err
	}
	s.assemble = structAssembler(t, s.fields, index)
	s.defined = true
	c.log.Debug("compiled schema", "type", t.String(), "fields", len(s.fields))
	return s, nil
}

func (c *compiler) field(sf reflect.StructField) (FieldSpec, error) {
	opts, err := parseTag(sf.Tag.Get("scrape"))
	if err != nil {
		return FieldSpec{}, err
	}
	f := FieldSpec{Name: fieldName(sf), Query: sf.Tag.Get("query")}
	if opts.ignore {
		f.Mode = Ignore
		return f, nil
	}

	shape, elem, err := shapeOf(sf.Type)
	if err != nil {
		// Defaulted fields of any type keep their zero value.
		if opts.mode == UseDefault && !opts.hasDefault {
			f.Mode = UseDefault
			return f, nil
		}
		return FieldSpec{}, err
	}
	f.Shape = shape
	if elem != nil {
		if f.Nested, err = c.compile(elem); err != nil {
			return FieldSpec{}, err
		}
	}

	switch {
	case opts.modeSet:
		f.Mode = opts.mode
	case sf.Type.Kind() == reflect.Pointer:
		f.Mode = Optional
	default:
		f.Mode = Required
	}

	if opts.hasDefault {
		switch shape {
		case Scalar:
			f.Default = opts.def
		case OptionalScalar:
			d := opts.def
			f.Default = &d
		default:
			return FieldSpec{}, fmt.Errorf("default literal on %s field", shape)
		}
	}

	if opts.transform != "" {
		t, ok := c.transforms[opts.transform]
		if !ok {
			return FieldSpec{}, fmt.Errorf("unknown transform %q", opts.transform)
		}
		f.Transform = t
	}
	return f, nil
}

func shapeOf(t reflect.Type) (Shape, reflect.Type, error) {
	switch {
	case t.Kind() == reflect.String:
		return Scalar, nil, nil
	case t == stringPtrType:
		return OptionalScalar, nil, nil
	case t == stringListType:
		return StringList, nil, nil
	case t.Kind() == reflect.Struct:
		return NestedOne, t, nil
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		return NestedOne, t.Elem(), nil
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Struct:
		return NestedList, t.Elem(), nil
	}
	return 0, nil, fmt.Errorf("unsupported field type %v", t)
}

func fieldName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}
	return name
}

type tagOptions struct {
	ignore     bool
	mode       Mode
	modeSet    bool
	def        string
	hasDefault bool
	transform  string
}

func parseTag(tag string) (tagOptions, error) {
	var o tagOptions
	if tag == "" {
		return o, nil
	}
	if tag == "-" {
		o.ignore = true
		return o, nil
	}
	for _, part := range strings.Split(tag, ",") {
		key, val, hasVal := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "required":
			o.mode, o.modeSet = Required, true
		case "optional":
			o.mode, o.modeSet = Optional, true
		case "default":
			o.mode, o.modeSet = UseDefault, true
			o.def, o.hasDefault = val, hasVal
		case "transform":
			if val == "" {
				return o, fmt.Errorf("empty transform name")
			}
			o.transform = val
		default:
			return o, fmt.Errorf("unknown scrape option %q", part)
		}
	}
	return o, nil
}

func structAssembler(t reflect.Type, fields []FieldSpec, index []int) func([]any) any {
	return func(values []any) any {
		v := reflect.New(t).Elem()
		for i := range fields {
			f := &fields[i]
			if f.Mode == Ignore || (f.Mode == UseDefault && f.Default == nil) {
				continue
			}
			setField(v.Field(index[i]), f.Shape, values[i])
		}
		return v.Interface()
	}
}

func setField(dst reflect.Value, shape Shape, val any) {
	switch shape {
	case Scalar:
		dst.SetString(val.(string))
	case OptionalScalar, StringList:
		dst.Set(reflect.ValueOf(val))
	case NestedOne:
		if val == nil {
			return
		}
		rv := reflect.ValueOf(val)
		if dst.Kind() == reflect.Pointer {
			p := reflect.New(dst.Type().Elem())
			p.Elem().Set(rv)
			rv = p
		}
		dst.Set(rv)
	case NestedList:
		items := val.([]any)
		out := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			out.Index(i).Set(reflect.ValueOf(item))
		}
		dst.Set(out)
	}
}
