package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/xscrape/internal/logging"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "xscrape",
		Short:         "Bind HTML, XML, JSON and source code documents to declared records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			format, err := logging.ParseFormat(opts.logFormat)
			if err != nil {
				return err
			}
			logging.Init(cmd.ErrOrStderr(), level, format)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(newBindCmd(), newCheckCmd(), newGenCmd())
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "xscrape:", err)
		os.Exit(1)
	}
}
