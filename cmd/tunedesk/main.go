package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tunedesk",
		Short: "Report back office for label royalty and analytics exports",
		Long: `tunedesk ingests the CSV and XLSX exports sent by stores and distributors,
keeps them per reporting period and serves the parsed records over HTTP.

  tunedesk serve                                          # run the HTTP API
  tunedesk validate --file jan.csv --category royalty     # check a file's header row
  tunedesk ingest --file jan.csv --category royalty -o yaml`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newIngestCmd())
	return root
}
