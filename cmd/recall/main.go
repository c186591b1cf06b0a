package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parchmentlabs/recall/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "recall",
		Short: "Recall command-line client",
		Long:  "Manage knowledge entries, ingest documents and run retrieval queries",
	}

	rootCmd.AddCommand(cli.IngestCmd())
	rootCmd.AddCommand(cli.SearchCmd())
	rootCmd.AddCommand(cli.KnowledgeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
