package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/cli"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/recurrence"
)

func recurrencesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurrences",
		Short: "Manage recurring charges",
	}

	cmd.AddCommand(recurrencesProcessCmd())

	return cmd
}

func recurrencesProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Record every recurring charge that is due",
		Long: `Catch every active recurring charge up to today.

Each elapsed period becomes one transaction dated on that period, and the
charge's next due date moves past today. Running it twice creates nothing
the second time.`,
		RunE: runRecurrencesProcess,
	}

	cmd.Flags().String("owner", "", "Only process charges of this owner (id or email)")

	return cmd
}

func runRecurrencesProcess(cmd *cobra.Command, _ []string) error {
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

	var ownerID *int64
	if ownerRef != "" {
		owner, err := findOwner(ctx, store, ownerRef)
		if err != nil {
			return fmt.Errorf("failed to find owner %q: %w", ownerRef, err)
		}
		ownerID = &owner.ID
	}

	clock := calendar.SystemClock{}
	due, err := store.ListActiveDueBy(ctx, clock.Today(), ownerID)
	if err != nil {
		return fmt.Errorf("failed to list due charges: %w", err)
	}
	if len(due) == 0 {
		fmt.Fprintln(os.Stdout, cli.RenderSweep(recurrence.SweepResult{}))
		return nil
	}

	common.LogDebug("Processing due charges", common.Fields{"count": len(due), "date": clock.Today().String()})
	progress := cli.NewSweepProgress(os.Stderr, len(due))
	processor := recurrence.NewProcessor(store, clock, recurrence.WithObserver(progress.Observe))

	var result recurrence.SweepResult
	if ownerID != nil {
		result, err = processor.ProcessOwner(ctx, *ownerID)
	} else {
		result, err = processor.ProcessAllDue(ctx)
	}
	progress.Finish()
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, cli.RenderSweep(result))
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d recurring charge(s) failed", len(result.Failures))
	}
	return nil
}
