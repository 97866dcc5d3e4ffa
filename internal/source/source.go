// Package source reads input documents from a billy filesystem and parses
// them with the evaluator their file extension selects.
package source

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/agentic-research/xscrape/document/codedoc"
	"github.com/agentic-research/xscrape/document/jsondoc"
	"github.com/agentic-research/xscrape/document/xpathdoc"
	"github.com/agentic-research/xscrape/scrape"
)

// Kind selects the evaluator for a source.
type Kind int

const (
	Unsupported Kind = iota
	HTML
	XML
	JSON
	Code
)

func (k Kind) String() string {
	switch k {
	case HTML:
		return "html"
	case XML:
		return "xml"
	case JSON:
		return "json"
	case Code:
		return "code"
	}
	return "unsupported"
}

// ErrUnsupported is returned for files no evaluator understands.
var ErrUnsupported = errors.New("unsupported source")

// KindOf maps a file name to its Kind, looking through a trailing .xz.
func KindOf(name string) Kind {
	name = strings.TrimSuffix(name, ".xz")
	ext := path.Ext(name)
	switch strings.ToLower(ext) {
	case ".html", ".htm", ".xhtml":
		return HTML
	case ".xml", ".rss", ".atom":
		return XML
	case ".json":
		return JSON
	default:
		if _, _, ok := codedoc.DetectLanguage(ext); ok {
			return Code
		}
	}
	return Unsupported
}

// Source is one loaded input file.
type Source struct {
	Path string
	Kind Kind
	// Digest is the hex BLAKE3 sum of Data.
	Digest string
	// Data is the decompressed content.
	Data []byte
}

// Open parses the source. The returned release func frees parser resources
// and must be called once the document is no longer used.
func (s *Source) Open(ctx context.Context) (scrape.Document, func(), error) {
	noop := func() {}
	switch s.Kind {
	case HTML:
		doc, err := xpathdoc.HTML(s.Data)
		return doc, noop, err
	case XML:
		doc, err := xpathdoc.XML(s.Data)
		return doc, noop, err
	case JSON:
		doc, err := jsondoc.Parse(s.Data)
		return doc, noop, err
	case Code:
		doc, err := codedoc.ParseFile(ctx, strings.TrimSuffix(s.Path, ".xz"), s.Data)
		if err != nil {
			return nil, noop, err
		}
		if errs := doc.SyntaxErrors(); len(errs) > 0 {
			slog.Warn("source has syntax errors", "path", s.Path, "count", len(errs), "first", errs[0].Error())
		}
		return doc, doc.Close, nil
	}
	return nil, noop, fmt.Errorf("%s: %w", s.Path, ErrUnsupported)
}

// Loader reads sources from a filesystem.
type Loader struct {
	fs  billy.Filesystem
	log *slog.Logger
	abs bool // resolve relative names against the working directory
}

// NewLoader returns a Loader over fs. A nil logger means slog.Default().
func NewLoader(fs billy.Filesystem, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{fs: fs, log: log}
}

// Local returns a Loader over the host filesystem. Paths are resolved against
// the working directory.
func Local(log *slog.Logger) *Loader {
	l := NewLoader(osfs.New("/"), log)
	l.abs = true
	return l
}

func (l *Loader) resolve(name string) string {
	if l.abs && !filepath.IsAbs(name) {
		if abs, err := filepath.Abs(name); err == nil {
			return abs
		}
	}
	return name
}

// Read loads one file. Files ending in .xz are decompressed.
func (l *Loader) Read(name string) (*Source, error) {
	kind := KindOf(name)
	if kind == Unsupported {
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupported)
	}
	data, err := util.ReadFile(l.fs, l.resolve(name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if strings.HasSuffix(name, ".xz") {
		r, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("xz %s: %w", name, err)
		}
		if data, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("xz %s: %w", name, err)
		}
	}
	sum := blake3.Sum256(data)
	return &Source{
		Path:   name,
		Kind:   kind,
		Digest: hex.EncodeToString(sum[:]),
		Data:   data,
	}, nil
}

// Files expands names into the supported files they denote. Directories are
// walked recursively in lexical order; unsupported and binary files found
// while walking are skipped. Named files are kept as given.
func (l *Loader) Files(names ...string) ([]string, error) {
	var out []string
	for _, name := range names {
		info, err := l.fs.Stat(l.resolve(name))
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, name)
			continue
		}
		start := len(out)
		err = util.Walk(l.fs, l.resolve(name), func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				if p != l.resolve(name) && strings.HasPrefix(fi.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if KindOf(p) == Unsupported {
				return nil
			}
			if l.isBinary(p) {
				l.log.Debug("skipping binary file", "path", p)
				return nil
			}
			out = append(out, p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", name, err)
		}
		slices.Sort(out[start:])
	}
	return out, nil
}

// isBinary sniffs the first 8KB for a NUL byte. Compressed files are never
// considered binary.
func (l *Loader) isBinary(name string) bool {
	if strings.HasSuffix(name, ".xz") {
		return false
	}
	f, err := l.fs.Open(name)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 8192)
	n, _ := io.ReadFull(f, buf)
	return bytes.IndexByte(buf[:n], 0) >= 0
}

// RecordID derives a stable id for the index-th record bound from a source.
func RecordID(schema, digest string, index int) string {
	h := blake3.New()
	_, _ = fmt.Fprintf(h, "%s\x00%s\x00%d", schema, digest, index)
	return hex.EncodeToString(h.Sum(nil)[:16])
}
