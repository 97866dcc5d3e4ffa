package api

// SchemaFile is the root of a schema file. It declares the records that
// documents can be bound to.
type SchemaFile struct {
	// Records in declaration order. Names are unique.
	Records []Record `hcl:"record,block" json:"records"`
}

// Record declares one record type.
type Record struct {
	// Name of the record. Field types refer to records by name.
	Name string `hcl:"name,label" json:"name"`
	// Container is an optional default query selecting the nodes each
	// record is bound to (one record per match).
	Container *string `hcl:"container,optional" json:"container,omitempty"`
	// Fields in binding order.
	Fields []Field `hcl:"field,block" json:"fields"`
}

// Field declares one field of a record.
type Field struct {
	// Name of the field; the key in bound records.
	Name string `hcl:"name,label" json:"name"`
	// Type is one of string, *string, []string, R, *R or []R where R is a
	// record name.
	Type string `hcl:"type" json:"type"`
	// Query locates the field's data. Required unless Mode is "default" or
	// "ignore".
	Query *string `hcl:"query,optional" json:"query,omitempty"`
	// Mode is required, optional, default or ignore. Pointer types default
	// to optional, everything else to required.
	Mode *string `hcl:"mode,optional" json:"mode,omitempty"`
	// Default is bound when Mode is "default".
	Default *string `hcl:"default,optional" json:"default,omitempty"`
	// Transforms run in order on the coerced value.
	Transforms []Transform `hcl:"transform,block" json:"transforms,omitempty"`
}

// Transform names a builtin transform with its optional argument.
type Transform struct {
	Name string  `hcl:"name,label" json:"name"`
	Arg  *string `hcl:"arg,optional" json:"arg,omitempty"`
}
