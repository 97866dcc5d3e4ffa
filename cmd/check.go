package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentic-research/xscrape/internal/schemafile"
	"github.com/agentic-research/xscrape/scrape"
)

func newCheckCmd() *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a schema file and list its records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := loadSchemas(schemaPath)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range set.Names() {
				s, _ := set.Schema(name)
				if c := set.Container(name); c != "" {
					fmt.Fprintf(tw, "record %s\tcontainer %s\n", name, c)
				} else {
					fmt.Fprintf(tw, "record %s\n", name)
				}
				for _, f := range s.Fields() {
					fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Name, shapeLabel(f), f.Mode, f.Query)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "Path to schema file (.hcl or .json)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func shapeLabel(f scrape.FieldSpec) string {
	if f.Nested != nil {
		return fmt.Sprintf("%s(%s)", f.Shape, f.Nested.Name())
	}
	return f.Shape.String()
}

func loadSchemas(path string) (*schemafile.Set, error) {
	f, err := schemafile.Load(path)
	if err != nil {
		return nil, err
	}
	set, err := schemafile.Compile(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
