package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parchmentlabs/recall/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "recalld",
		Short: "Recall daemon",
		Long:  "Recall daemon for running the retrieval API server and embedding backfill worker",
	}

	rootCmd.AddCommand(cli.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
