package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/finscale/internal/cli"
)

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show an owner's income, expenses and balance",
		RunE:  runSummary,
	}

	cmd.Flags().String("owner", "", "Owner id or email (required)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runSummary(cmd *cobra.Command, _ []string) error {
	ownerRef, _ := cmd.Flags().GetString("owner")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	owner, err := findOwner(ctx, store, ownerRef)
	if err != nil {
		return fmt.Errorf("failed to find owner %q: %w", ownerRef, err)
	}

	summary, err := store.SummarizeOwner(ctx, owner.ID)
	if err != nil {
		return err
	}
	cards, err := store.ListCards(ctx, owner.ID)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, cli.RenderSummary(owner, summary, cards))
	return nil
}
