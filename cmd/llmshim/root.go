package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logFileFlag string
	var prettyFlag bool
	var metricsFlag bool

	ctx := newCommandContext(&configFlag, &logFileFlag, &prettyFlag)

	rootCmd := &cobra.Command{
		Use:           "llmshim",
		Short:         "Call LLM APIs with key rotation and retries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !metricsFlag {
				return nil
			}
			return ctx.writeMetrics(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "logfile", "", "Write logs to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&prettyFlag, "pretty", false, "Human-readable log output")
	rootCmd.PersistentFlags().BoolVar(&metricsFlag, "metrics", false, "Print call metrics to stderr when the command finishes")

	rootCmd.AddCommand(newChatCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newCompleteCommand(ctx))
	rootCmd.AddCommand(newEmbedCommand(ctx))
	rootCmd.AddCommand(newModelsCommand(ctx))
	rootCmd.AddCommand(newKeysCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
