package cmd

import (
	"github.com/spf13/cobra"

	"github.com/paperdag/paperdag/internal/workflow"
)

// CmdFetch creates the fetch command.
func CmdFetch() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "fetch",
			Short: "Store the current catalog window without processing it",
			Long: `Fetch the configured catalog window for arxiv_topic_list and merge the
papers into the fetched_papers store in chunks of fetch_batch_size. No
LLM calls are made; the store is a raw snapshot other tooling can read.

Example:
  paperdag fetch
`,
			Args: cobra.NoArgs,
		}, runFetch,
	)
}

func runFetch(ctx *Context, _ []string) error {
	return workflow.RunFetch(ctx, ctx.WorkflowDeps())
}
