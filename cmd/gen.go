package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentic-research/xscrape/internal/gen"
	"github.com/agentic-research/xscrape/internal/schemafile"
)

func newGenCmd() *cobra.Command {
	var schemaPath, pkg, output string
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate Go types with binding tags from a schema file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := schemafile.Load(schemaPath)
			if err != nil {
				return err
			}
			src, err := gen.Generate(f, gen.Config{Package: pkg, Source: filepath.Base(schemaPath)})
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			return os.WriteFile(output, src, 0o644)
		},
	}
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "Path to schema file (.hcl or .json)")
	cmd.Flags().StringVarP(&pkg, "package", "p", "records", "Package name of the generated file")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (default stdout)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}
