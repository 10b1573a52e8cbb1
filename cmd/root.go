package cmd

import (
	"github.com/spf13/cobra"

	"github.com/paperdag/paperdag/internal/build"
)

// New assembles the root command with every subcommand and the flags
// shared by all of them.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   build.Slug,
		Short: "Recurring arXiv paper pipelines: filter, summarize, and push",
		Long: `Paperdag runs small resumable pipelines over the arXiv catalog: it
fetches new papers for the configured topics, filters them with an LLM,
summarizes their full text, and pushes the results as Feishu cards.

Every stage records which paper IDs it has finished, so re-running a
command continues where the previous run stopped instead of repeating
LLM calls or deliveries.
`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "config file (default ./config.yaml, then $XDG_CONFIG_HOME/"+build.Slug+"/config.yaml)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "suppress log output to stderr")

	cmd.AddCommand(CmdFetch())
	cmd.AddCommand(CmdFilter())
	cmd.AddCommand(CmdSummarize())
	cmd.AddCommand(CmdPush())
	cmd.AddCommand(CmdReport())
	cmd.AddCommand(CmdStatus())
	cmd.AddCommand(CmdVersion())

	return cmd
}

// Execute runs the root command. It is called once from main.
func Execute() error {
	return New().Execute()
}
