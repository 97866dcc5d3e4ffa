package scrape

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissing matches every *MissingError.
var ErrMissing = errors.New("no matches")

// ErrUndefined is returned when materializing a schema that was declared but
// never defined.
var ErrUndefined = errors.New("schema is not defined")

// QueryError reports that the evaluator could not run a query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ConversionError reports a match that exists but cannot take the field's
// shape, or a transform that rejected the coerced value.
type ConversionError struct {
	Reason string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ConversionError) Unwrap() error { return e.Err }

// MissingError reports a required field whose query matched nothing.
type MissingError struct {
	Query string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Query, ErrMissing)
}

func (e *MissingError) Is(target error) bool { return target == ErrMissing }

// PathElement is a field name (string) or a list index (int).
type PathElement any

// Path locates a field inside a nested value, outermost first.
type Path []PathElement

func (p Path) String() string {
	var b strings.Builder
	for i, el := range p {
		switch v := el.(type) {
		case int:
			b.WriteString("[" + strconv.Itoa(v) + "]")
		default:
			if i > 0 {
				b.WriteByte('.')
			}
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

// ExtractionError is the only error a materialize call returns for document
// dependent failures. Err is a *QueryError, *ConversionError or *MissingError.
type ExtractionError struct {
	Path Path
	Err  error
}

func (e *ExtractionError) Error() string {
	if len(e.Path) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("field %q: %v", e.Path.String(), e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// withPath prepends el to the path of err, creating the ExtractionError on
// first use.
func withPath(el PathElement, err error) error {
	if ee, ok := err.(*ExtractionError); ok {
		path := make(Path, 0, len(ee.Path)+1)
		path = append(path, el)
		ee.Path = append(path, ee.Path...)
		return ee
	}
	return &ExtractionError{Path: Path{el}, Err: err}
}
