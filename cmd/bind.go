package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/xscrape/document/jsondoc"
	"github.com/agentic-research/xscrape/internal/source"
	"github.com/agentic-research/xscrape/internal/store"
	"github.com/agentic-research/xscrape/scrape"
)

type bindOptions struct {
	schema    string
	record    string
	container string
	db        string
	out       string
	format    string
	jobs      int
}

// bound is every value bound from one input, in match order.
type bound struct {
	source string
	digest string
	values []any
}

func newBindCmd() *cobra.Command {
	opts := &bindOptions{}
	cmd := &cobra.Command{
		Use:   "bind [path...]",
		Short: "Bind documents or stored JSON records to a schema record",
		Long: `Bind binds every input document to one record of a schema file.

Inputs are files or directories (walked recursively) selected by extension:
.html/.htm (XPath), .xml (XPath), .json (JSONPath) and source files tree-sitter
has a grammar for (tree-sitter queries). A trailing .xz is decompressed. With
--db, the JSON records of a results table are bound as well.

When the record (or --container) names a container query, one value is bound
per container match; otherwise one value per document.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBind(cmd.Context(), cmd, opts, args)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.schema, "schema", "s", "", "Path to schema file (.hcl or .json)")
	f.StringVarP(&opts.record, "record", "r", "", "Record to bind (default: the only record)")
	f.StringVarP(&opts.container, "container", "c", "", "Container query, overriding the record's")
	f.StringVar(&opts.db, "db", "", "SQLite database whose results table is bound as JSON")
	f.StringVarP(&opts.out, "out", "o", "", "SQLite database to store bound records in")
	f.StringVar(&opts.format, "format", "json", "Output format (json, debug, none)")
	f.IntVarP(&opts.jobs, "jobs", "j", runtime.NumCPU(), "Documents bound in parallel")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func runBind(ctx context.Context, cmd *cobra.Command, opts *bindOptions, args []string) error {
	if len(args) == 0 && opts.db == "" {
		return errors.New("no inputs: pass paths or --db")
	}
	emit, err := printer(cmd.OutOrStdout(), opts.format)
	if err != nil {
		return err
	}

	set, err := loadSchemas(opts.schema)
	if err != nil {
		return err
	}
	name := opts.record
	if name == "" {
		if names := set.Names(); len(names) == 1 {
			name = names[0]
		} else {
			return fmt.Errorf("schema declares %d records: choose one with --record", len(names))
		}
	}
	schema, ok := set.Schema(name)
	if !ok {
		return fmt.Errorf("unknown record %q", name)
	}
	container := set.Container(name)
	if cmd.Flags().Changed("container") {
		container = opts.container
	}

	bindDoc := func(doc scrape.Document) ([]any, error) {
		if container == "" {
			v, err := scrape.Materialize(schema, doc, nil)
			if err != nil {
				return nil, err
			}
			return []any{v}, nil
		}
		return scrape.MaterializeAll(schema, doc, nil, container)
	}

	var w *store.Writer
	if opts.out != "" {
		if w, err = store.NewWriter(opts.out); err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
	}

	start := time.Now()
	var results []bound
	if len(args) > 0 {
		if results, err = bindFiles(ctx, source.Local(nil), args, opts.jobs, bindDoc); err != nil {
			return err
		}
	}
	if opts.db != "" {
		err := store.Stream(opts.db, func(id string, doc *jsondoc.Document) error {
			vs, err := bindDoc(doc)
			if err != nil {
				return fmt.Errorf("%s record %s: %w", opts.db, id, err)
			}
			results = append(results, bound{source: opts.db + "#" + id, digest: id, values: vs})
			return nil
		})
		if err != nil {
			return err
		}
	}

	count := 0
	for _, r := range results {
		for i, v := range r.values {
			id := source.RecordID(name, r.digest, i)
			if w != nil {
				if err := w.Put(store.Row{ID: id, Schema: name, Source: r.source, Record: v}); err != nil {
					return err
				}
			}
			if err := emit(r.source, i, v); err != nil {
				return err
			}
			count++
		}
	}
	if w != nil {
		if err := w.Close(); err != nil {
			return err
		}
	}
	slog.Info("bind finished",
		"record", name,
		"sources", len(results),
		"records", count,
		"elapsed", time.Since(start))
	return nil
}

// bindFiles loads and binds every file in parallel. The first failure
// cancels the remaining work; results keep input order.
func bindFiles(ctx context.Context, l *source.Loader, paths []string, jobs int, bindDoc func(scrape.Document) ([]any, error)) ([]bound, error) {
	files, err := l.Files(paths...)
	if err != nil {
		return nil, err
	}
	results := make([]bound, len(files))

	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, name := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := l.Read(name)
			if err != nil {
				return err
			}
			doc, release, err := src.Open(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			defer release()

			vs, err := bindDoc(doc)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			slog.Debug("bound document", "path", name, "kind", src.Kind, "records", len(vs))
			results[i] = bound{source: name, digest: src.Digest, values: vs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printer(w io.Writer, format string) (func(src string, i int, v any) error, error) {
	switch format {
	case "json":
		return func(_ string, _ int, v any) error {
			_, err := fmt.Fprintln(w, store.Encode(v))
			return err
		}, nil
	case "debug":
		cfg := spew.ConfigState{
			Indent:                  "  ",
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		}
		return func(src string, i int, v any) error {
			if _, err := fmt.Fprintf(w, "# %s[%d]\n", src, i); err != nil {
				return err
			}
			cfg.Fdump(w, v)
			return nil
		}, nil
	case "none":
		return func(string, int, any) error { return nil }, nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}
