package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parchmentlabs/recall/internal/config"
	"github.com/parchmentlabs/recall/internal/service"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a document into the knowledge base",
		Long:  "Extract, chunk and embed a local document, storing it as searchable file chunks",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}

	cmd.Flags().String("owner", "", "Owner id the document belongs to (required)")
	cmd.Flags().String("entity", "", "Entity id for scoped retrieval")
	cmd.Flags().String("file-id", "", "Existing file id to re-ingest under")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, cleanup, err := BuildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	owner, _ := cmd.Flags().GetString("owner")
	entity, _ := cmd.Flags().GetString("entity")
	fileID, _ := cmd.Flags().GetString("file-id")

	result, err := app.Ingest.Ingest(ctx, service.IngestInput{
		OwnerID:  owner,
		EntityID: entity,
		Filename: filepath.Base(path),
		Data:     data,
		FileID:   fileID,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	return printJSON(cmd, result)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
