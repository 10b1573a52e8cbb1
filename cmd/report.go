package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/paperdag/paperdag/internal/models"
	"github.com/paperdag/paperdag/internal/workflow"
)

// CmdReport creates the report command.
func CmdReport() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Push a cross-paper daily brief for one date",
		Long: `Collect the stored summaries whose papers were updated on the given
date, ask the LLM for a trends digest across them, and push the digest
as a single Feishu card. A date without summarized papers is skipped.

Unlike per-paper pushes the brief carries no delivery state: reporting
the same date twice sends two cards.

Example:
  paperdag report
  paperdag report --date 2026-08-24
`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringP("date", "d", "", "report date as YYYY-MM-DD (default today)")
	return NewCommand(cmd, runReport)
}

func runReport(ctx *Context, _ []string) error {
	dateStr, err := ctx.Command.Flags().GetString("date")
	if err != nil {
		return fmt.Errorf("failed to get date flag: %w", err)
	}

	date := models.NewDate(time.Now())
	if dateStr != "" {
		date, err = models.ParseDate(dateStr)
		if err != nil {
			return err
		}
	}

	return workflow.RunReport(ctx, ctx.WorkflowDeps(), date)
}
