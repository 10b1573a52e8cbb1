package cmd

import (
	"github.com/spf13/cobra"

	"github.com/paperdag/paperdag/internal/workflow"
)

// CmdPush creates the push command.
func CmdPush() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "push",
			Short: "Deliver unpushed summaries as Feishu cards",
			Long: `Read the stored summaries, drop the ones already delivered, and push
the rest to the configured Feishu webhook one card per paper, oldest
first. Only papers whose card was accepted are marked delivered, so a
re-run retries just the failures.

Requires feishu_webhook_url to be set.

Example:
  paperdag push
`,
			Args: cobra.NoArgs,
		}, runPush,
	)
}

func runPush(ctx *Context, _ []string) error {
	return workflow.RunPush(ctx, ctx.WorkflowDeps())
}
