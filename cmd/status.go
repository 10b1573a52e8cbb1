package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/paperdag/paperdag/internal/workflow"
)

// CmdStatus creates the status command.
func CmdStatus() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the stores and stage progress under the storage path",
			Long: `Print what the pipelines have accumulated under storage.base_path: how
many documents each store holds and, per stage, how many paper IDs are
still pending versus finished.

Example:
  paperdag status
`,
			Args: cobra.NoArgs,
		}, runStatus,
	)
}

func runStatus(ctx *Context, _ []string) error {
	stages, stores, err := workflow.Status(ctx.Config.Storage.BasePath)
	if err != nil {
		return err
	}

	out := ctx.Command.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Storage: %s\n\n", ctx.Config.Storage.BasePath)

	_, _ = fmt.Fprintln(out, renderStoreTable(stores))
	if len(stages) == 0 {
		_, _ = fmt.Fprintln(out, "No stage progress recorded yet.")
		return nil
	}
	_, _ = fmt.Fprintln(out, renderStageTable(stages))
	return nil
}

var storeHeader = table.Row{"Store", "Documents", "Updated At"}

func renderStoreTable(stores []workflow.StoreStatus) string {
	storeTable := table.NewWriter()
	storeTable.AppendHeader(storeHeader)

	for _, s := range stores {
		updatedAt := ""
		if !s.UpdatedAt.IsZero() {
			updatedAt = s.UpdatedAt.Local().Format(time.RFC3339)
		}
		storeTable.AppendRow(table.Row{s.Namespace, s.Documents, updatedAt})
	}

	return storeTable.Render()
}

var stageHeader = table.Row{"Stage", "Pending", "Finished"}

func renderStageTable(stages []workflow.StageStatus) string {
	stageTable := table.NewWriter()
	stageTable.AppendHeader(stageHeader)

	for _, s := range stages {
		pending := fmt.Sprintf("%d", s.Pending)
		if s.Pending > 0 {
			pending = color.YellowString(pending)
		}
		finished := fmt.Sprintf("%d", s.Finished)
		if s.Finished > 0 {
			finished = color.GreenString(finished)
		}
		stageTable.AppendRow(table.Row{s.Namespace, pending, finished})
	}

	return stageTable.Render()
}
