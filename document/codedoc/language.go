package codedoc

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/hcl"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/yaml"
)

type grammar struct {
	name string
	lang func() *sitter.Language
}

// grammars maps lower case file extensions to tree-sitter grammars. The
// javascript grammar parses JSX as well.
var grammars = map[string]grammar{
	".go":     {"go", golang.GetLanguage},
	".py":     {"python", python.GetLanguage},
	".pyi":    {"python", python.GetLanguage},
	".hcl":    {"hcl", hcl.GetLanguage},
	".tf":     {"hcl", hcl.GetLanguage},
	".tfvars": {"hcl", hcl.GetLanguage},
	".js":     {"javascript", javascript.GetLanguage},
	".mjs":    {"javascript", javascript.GetLanguage},
	".cjs":    {"javascript", javascript.GetLanguage},
	".jsx":    {"javascript", javascript.GetLanguage},
	".ts":     {"typescript", typescript.GetLanguage},
	".mts":    {"typescript", typescript.GetLanguage},
	".cts":    {"typescript", typescript.GetLanguage},
	".tsx":    {"tsx", tsx.GetLanguage},
	".rs":     {"rust", rust.GetLanguage},
	".sql":    {"sql", sql.GetLanguage},
	".yaml":   {"yaml", yaml.GetLanguage},
	".yml":    {"yaml", yaml.GetLanguage},
}

// DetectLanguage returns the language name and grammar for a file extension
// such as ".go". Matching ignores case.
func DetectLanguage(ext string) (name string, lang *sitter.Language, ok bool) {
	g, ok := grammars[strings.ToLower(ext)]
	if !ok {
		return "", nil, false
	}
	return g.name, g.lang(), true
}
