package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parchmentlabs/recall/internal/config"
	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/service"
)

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve knowledge snippets for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().String("owner", "", "Owner id to search within (required)")
	cmd.Flags().String("entity", "", "Entity id for scoped retrieval")
	cmd.Flags().StringSlice("type", nil, "Knowledge types to search (default: all)")
	cmd.Flags().StringSlice("file-id", nil, "File ids to prioritize for document chunks")
	cmd.Flags().Int("top-k", 0, "Maximum number of snippets")
	cmd.Flags().Float64("min-score", 0, "Minimum similarity score")
	cmd.Flags().Bool("rerank", false, "Rerank results before returning")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	rawTypes, _ := cmd.Flags().GetStringSlice("type")
	types := make([]domain.KnowledgeType, 0, len(rawTypes))
	for _, t := range rawTypes {
		typ := domain.KnowledgeType(t)
		if !typ.Valid() {
			return fmt.Errorf("invalid knowledge type: %s", t)
		}
		types = append(types, typ)
	}

	owner, _ := cmd.Flags().GetString("owner")
	entity, _ := cmd.Flags().GetString("entity")
	fileIDs, _ := cmd.Flags().GetStringSlice("file-id")
	topK, _ := cmd.Flags().GetInt("top-k")
	minScore, _ := cmd.Flags().GetFloat64("min-score")
	rerank, _ := cmd.Flags().GetBool("rerank")

	snippets := app.Retrieval.Retrieve(ctx, service.RetrieveInput{
		OwnerID:  owner,
		EntityID: entity,
		Query:    strings.Join(args, " "),
		Types:    types,
		FileIDs:  fileIDs,
		TopK:     topK,
		MinScore: minScore,
		Rerank:   rerank,
	})

	return printJSON(cmd, snippets)
}
