package cmd

import (
	"github.com/spf13/cobra"

	"github.com/paperdag/paperdag/internal/workflow"
)

// CmdFilter creates the filter command.
func CmdFilter() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "filter",
			Short: "Judge new catalog papers against the filter topic",
			Long: `Fetch the configured catalog window, ask the LLM whether each new paper
is relevant to llm_filter_topic, and store the accepted papers in the
filtered_papers store. Papers already judged in an earlier run are
skipped.

Example:
  paperdag filter
  paperdag filter --config ./config.yaml
`,
			Args: cobra.NoArgs,
		}, runFilter,
	)
}

func runFilter(ctx *Context, _ []string) error {
	return workflow.RunFilter(ctx, ctx.WorkflowDeps())
}
