package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parchmentlabs/recall/internal/config"
	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/service"
)

// KnowledgeCmd returns the knowledge command group
func KnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage knowledge entries",
	}

	cmd.AddCommand(knowledgeAddCmd())
	cmd.AddCommand(knowledgeGetCmd())
	cmd.AddCommand(knowledgeListCmd())
	cmd.AddCommand(knowledgeDeleteCmd())

	return cmd
}

func knowledgeAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a knowledge entry",
		RunE:  runKnowledgeAdd,
	}

	cmd.Flags().String("owner", "", "Owner id (required)")
	cmd.Flags().String("entity", "", "Entity id for scoped retrieval")
	cmd.Flags().String("parent", "", "Parent entry id")
	cmd.Flags().String("type", "", "Entry type: semantic_model, qa_pair, synonym, business_knowledge (required)")

	cmd.Flags().String("name", "", "Semantic model name")
	cmd.Flags().String("description", "", "Semantic model description")
	cmd.Flags().String("question", "", "QA pair question")
	cmd.Flags().String("answer", "", "QA pair answer")
	cmd.Flags().String("term", "", "Synonym canonical term")
	cmd.Flags().StringSlice("synonyms", nil, "Synonym alternatives")
	cmd.Flags().String("title", "", "Business knowledge title")
	cmd.Flags().String("text", "", "Business knowledge text")

	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runKnowledgeAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	entity, _ := cmd.Flags().GetString("entity")
	typ, _ := cmd.Flags().GetString("type")

	var payload domain.Payload
	switch domain.KnowledgeType(typ) {
	case domain.KnowledgeTypeSemanticModel:
		name, _ := cmd.Flags().GetString("name")
		desc, _ := cmd.Flags().GetString("description")
		payload = domain.SemanticModelPayload{Name: name, Description: desc, EntityID: entity}
	case domain.KnowledgeTypeQAPair:
		question, _ := cmd.Flags().GetString("question")
		answer, _ := cmd.Flags().GetString("answer")
		payload = domain.QAPayload{Question: question, Answer: answer, EntityID: entity}
	case domain.KnowledgeTypeSynonym:
		term, _ := cmd.Flags().GetString("term")
		synonyms, _ := cmd.Flags().GetStringSlice("synonyms")
		payload = domain.SynonymPayload{Term: term, Synonyms: synonyms, EntityID: entity}
	case domain.KnowledgeTypeBusinessKnowledge:
		title, _ := cmd.Flags().GetString("title")
		text, _ := cmd.Flags().GetString("text")
		payload = domain.BusinessPayload{Title: title, Text: text, EntityID: entity}
	default:
		return fmt.Errorf("unsupported entry type: %s", typ)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, cleanup, err := BuildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	owner, _ := cmd.Flags().GetString("owner")
	parent, _ := cmd.Flags().GetString("parent")

	entry, err := app.Knowledge.Create(ctx, service.CreateKnowledgeInput{
		OwnerID:  owner,
		ParentID: parent,
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}

	return printJSON(cmd, entry)
}

func knowledgeGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			entry, err := app.Knowledge.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, entry)
		},
	}
}

func knowledgeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge entries for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			typ, _ := cmd.Flags().GetString("type")
			kt := domain.KnowledgeType(typ)
			if kt != "" && !kt.Valid() {
				return fmt.Errorf("invalid knowledge type: %s", typ)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			app, cleanup, err := BuildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			owner, _ := cmd.Flags().GetString("owner")
			cursor, _ := cmd.Flags().GetString("cursor")
			limit, _ := cmd.Flags().GetInt("limit")

			out, err := app.Knowledge.List(ctx, service.ListKnowledgeInput{
				OwnerID: owner,
				Type:    kt,
				Cursor:  cursor,
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().String("owner", "", "Owner id (required)")
	cmd.Flags().String("type", "", "Filter by entry type")
	cmd.Flags().String("cursor", "", "Pagination cursor from a previous page")
	cmd.Flags().Int("limit", 0, "Page size")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func knowledgeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a knowledge entry and its children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if err := app.Knowledge.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
