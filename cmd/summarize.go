package cmd

import (
	"github.com/spf13/cobra"

	"github.com/paperdag/paperdag/internal/workflow"
)

// CmdSummarize creates the summarize command.
func CmdSummarize() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "summarize",
			Short: "Download and summarize the pending papers",
			Long: `Work through the backlog of unsummarized papers in batches of
process_batch_size: download each PDF, extract its text, ask the LLM for
a summary, and store the result in the paper_summaries store. The
command keeps iterating until the backlog is drained, and a re-run
continues where an interrupted run stopped.

With enable_llm_filter the backlog comes from the filtered_papers store;
otherwise it comes straight from the catalog window.

Example:
  paperdag summarize
`,
			Args: cobra.NoArgs,
		}, runSummarize,
	)
}

func runSummarize(ctx *Context, _ []string) error {
	return workflow.RunSummarize(ctx, ctx.WorkflowDeps())
}
