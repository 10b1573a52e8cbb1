package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paperdag/paperdag/internal/arxiv"
	"github.com/paperdag/paperdag/internal/config"
	"github.com/paperdag/paperdag/internal/feishu"
	"github.com/paperdag/paperdag/internal/llm"
	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/workflow"
)

// Context holds the configuration for a command.
type Context struct {
	context.Context

	Command *cobra.Command
	Config  *config.Config
	Quiet   bool
}

// NewContext initializes a command invocation: it loads the configuration,
// builds the logger, and attaches it to the command context.
func NewContext(cmd *cobra.Command) (*Context, error) {
	ctx := cmd.Context()

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, fmt.Errorf("failed to get debug flag: %w", err)
	}

	var loaderOpts []config.LoaderOption
	if cfgPath, _ := cmd.Flags().GetString("config"); cfgPath != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(cfgPath))
	}

	cfg, err := config.Load(loaderOpts...)
	if err != nil {
		return nil, err
	}

	var opts []logger.Option
	if debug || os.Getenv("DEBUG") != "" {
		opts = append(opts, logger.WithDebug())
	}
	if quiet {
		opts = append(opts, logger.WithQuiet())
	}
	ctx = logger.WithLogger(ctx, logger.NewLogger(opts...))

	return &Context{
		Context: ctx,
		Command: cmd,
		Config:  cfg,
		Quiet:   quiet,
	}, nil
}

// WorkflowDeps builds the shared clients the workflows run with. The
// Feishu client stays nil without a webhook URL; the workflows that
// deliver cards check for it themselves.
func (c *Context) WorkflowDeps() workflow.Deps {
	deps := workflow.Deps{
		Config: c.Config,
		Arxiv:  arxiv.New(),
		LLM: llm.New(
			llm.WithAPIKey(c.Config.LLM.APIKey),
			llm.WithBaseURL(c.Config.LLM.BaseURL),
		),
	}
	if c.Config.FeishuWebhookURL != "" {
		deps.Feishu = feishu.New(c.Config.FeishuWebhookURL)
	}
	return deps
}

// NewCommand creates a new command instance with the given cobra command
// and run function. The run context is cancelled on SIGINT/SIGTERM so a
// workflow stops at the next stage boundary.
func NewCommand(cmd *cobra.Command, runFunc func(ctx *Context, args []string) error) *cobra.Command {
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext(cmd)
		if err != nil {
			fmt.Printf("Initialization error: %v\n", err)
			os.Exit(1)
		}

		signalCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx.Context = signalCtx

		if err := runFunc(ctx, args); err != nil {
			logger.Error(ctx.Context, "Command failed", "err", err)
			os.Exit(1)
		}
		return nil
	}

	return cmd
}
