// Package gen turns schema files into Go source: one struct per record with
// binding tags, plus the transform table the tags refer to.
package gen

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"mvdan.cc/gofumpt/format"

	"github.com/agentic-research/xscrape/api"
	"github.com/agentic-research/xscrape/internal/schemafile"
	"github.com/agentic-research/xscrape/scrape"
)

// Config holds generation settings.
type Config struct {
	// Package is the name of the generated package.
	Package string
	// Source names the schema file in the generated header.
	Source string
}

type fileData struct {
	Package    string
	Source     string
	Types      []typeData
	Transforms []transformData
}

type typeData struct {
	Name      string
	Record    string
	Container string
	Fields    []fieldData
}

type fieldData struct {
	Name string
	Type string
	Tag  string
}

type transformData struct {
	Key   string
	Steps []stepData
}

type stepData struct {
	Name string
	Arg  string // quoted
}

var fileTemplate = template.Must(template.New("file").Parse(`// Code generated by xscrape gen{{if .Source}} from {{.Source}}{{end}}. DO NOT EDIT.

package {{.Package}}
{{if .Transforms}}
import (
	"github.com/agentic-research/xscrape/scrape"
	"github.com/agentic-research/xscrape/transform"
)
{{end}}
{{range .Types}}
// {{.Name}} binds the {{.Record}} record.
type {{.Name}} struct {
{{range .Fields}}	{{.Name}} {{.Type}} {{.Tag}}
{{end}}}
{{if .Container}}
// {{.Name}}Container selects the nodes {{.Name}} values are bound to.
const {{.Name}}Container = {{.Container}}
{{end}}{{end}}
{{if .Transforms}}
// Transforms returns the transforms referenced by transform= tag options.
// Pass it to scrape.WithTransforms.
func Transforms() map[string]scrape.Transform {
	return map[string]scrape.Transform{
{{range .Transforms}}		{{printf "%q" .Key}}: scrape.Chain(
{{range .Steps}}			must(transform.Builtin({{printf "%q" .Name}}, {{.Arg}})),
{{end}}		),
{{end}}	}
}

func must(t scrape.Transform, err error) scrape.Transform {
	if err != nil {
		panic(err)
	}
	return t
}
{{end}}`))

// Generate validates f and renders it as gofumpt formatted Go source.
func Generate(f *api.SchemaFile, cfg Config) ([]byte, error) {
	if _, err := schemafile.Compile(f); err != nil {
		return nil, err
	}
	if cfg.Package == "" {
		cfg.Package = "records"
	}
	if !validPackageName(cfg.Package) {
		return nil, fmt.Errorf("invalid package name %q", cfg.Package)
	}

	data := fileData{Package: cfg.Package, Source: cfg.Source}
	types := make(map[string]string, len(f.Records))
	for _, r := range f.Records {
		name := ExportName(r.Name)
		if prev, ok := types[name]; ok {
			return nil, fmt.Errorf("records %s and %s both map to %s", prev, r.Name, name)
		}
		types[name] = r.Name
	}
	for _, r := range f.Records {
		td, tds, err := typeOf(r)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.Name, err)
		}
		data.Types = append(data.Types, td)
		data.Transforms = append(data.Transforms, tds...)
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}
	out, err := format.Source(buf.Bytes(), format.Options{})
	if err != nil {
		return nil, fmt.Errorf("formatting code: %w", err)
	}
	return out, nil
}

func typeOf(r api.Record) (typeData, []transformData, error) {
	td := typeData{Name: ExportName(r.Name), Record: r.Name}
	if r.Container != nil {
		td.Container = quote(*r.Container)
	}

	var tds []transformData
	seen := make(map[string]string)
	for _, fd := range r.Fields {
		name := ExportName(fd.Name)
		if prev, dup := seen[name]; dup {
			return typeData{}, nil, fmt.Errorf("fields %s and %s both map to %s", prev, fd.Name, name)
		}
		seen[name] = fd.Name

		ref, err := schemafile.ParseType(fd.Type)
		if err != nil {
			return typeData{}, nil, err
		}
		goType := fd.Type
		if ref.Record != "" {
			goType = ExportName(ref.Record)
			switch {
			case ref.Shape == scrape.NestedList:
				goType = "[]" + goType
			default:
				goType = "*" + goType
			}
		}

		var opts []string
		switch {
		case fd.Mode != nil && *fd.Mode == "ignore":
			opts = append(opts, "-")
		case fd.Mode != nil && *fd.Mode == "default":
			if fd.Default == nil {
				opts = append(opts, "default")
			} else {
				if strings.Contains(*fd.Default, ",") {
					return typeData{}, nil, fmt.Errorf("field %s: default %q contains a comma", fd.Name, *fd.Default)
				}
				opts = append(opts, "default="+*fd.Default)
			}
		case fd.Mode != nil:
			opts = append(opts, *fd.Mode)
		case ref.Record != "" && !ref.Pointer && ref.Shape == scrape.NestedOne:
			// R is generated as *R; keep it required.
			opts = append(opts, "required")
		}

		if len(fd.Transforms) > 0 {
			key := r.Name + "." + fd.Name
			opts = append(opts, "transform="+key)
			t := transformData{Key: key}
			for _, step := range fd.Transforms {
				arg := ""
				if step.Arg != nil {
					arg = *step.Arg
				}
				t.Steps = append(t.Steps, stepData{Name: step.Name, Arg: strconv.Quote(arg)})
			}
			tds = append(tds, t)
		}

		tag := fmt.Sprintf("json:%s", strconv.Quote(fd.Name))
		if fd.Query != nil {
			tag += " query:" + strconv.Quote(*fd.Query)
		}
		if len(opts) > 0 {
			tag += " scrape:" + strconv.Quote(strings.Join(opts, ","))
		}
		td.Fields = append(td.Fields, fieldData{Name: name, Type: goType, Tag: quote(tag)})
	}
	return td, tds, nil
}

// quote renders s as a raw string literal when possible.
func quote(s string) string {
	if strings.ContainsAny(s, "`\r") {
		return strconv.Quote(s)
	}
	return "`" + s + "`"
}

var initialisms = map[string]bool{
	"api": true, "css": true, "html": true, "http": true, "id": true, "ip": true,
	"json": true, "sql": true, "uri": true, "url": true, "uuid": true, "xml": true,
}

// ExportName converts a record or field name into an exported Go
// identifier: "author_name" becomes AuthorName and "url" becomes URL.
func ExportName(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, p := range parts {
		if initialisms[strings.ToLower(p)] {
			b.WriteString(strings.ToUpper(p))
			continue
		}
		rs := []rune(p)
		rs[0] = unicode.ToUpper(rs[0])
		b.WriteString(string(rs))
	}
	out := b.String()
	if out == "" || !unicode.IsLetter([]rune(out)[0]) {
		out = "X" + out
	}
	return out
}

func validPackageName(s string) bool {
	for i, r := range s {
		if r != '_' && !unicode.IsLetter(r) && (i == 0 || !unicode.IsDigit(r)) {
			return false
		}
	}
	return s != ""
}
