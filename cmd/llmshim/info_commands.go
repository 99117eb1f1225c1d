package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/aschepis/backscratcher/llmshim/config"
	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/aschepis/backscratcher/llmshim/llm/keypool"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "models",
		Short:       "List registered model names",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tPROVIDER")
			for _, name := range ctx.registry.Names() {
				provider, _ := ctx.registry.Provider(name)
				fmt.Fprintf(w, "%s\t%s\n", name, provider)
			}
			return w.Flush()
		},
	}
}

type keySummary struct {
	Provider string   `json:"provider"`
	Keys     []string `json:"keys"`
	APIBase  string   `json:"api_base,omitempty"`
}

func newKeysCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Show the configured API keys, masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			summaries := lo.Map([]string{llm.ProviderOpenAI, llm.ProviderAnthropic}, func(provider string, _ int) keySummary {
				p, _ := cfg.Provider(provider)
				return keySummary{
					Provider: provider,
					Keys:     lo.Map(p.APIKeys, func(k string, _ int) string { return keypool.MaskKey(k) }),
					APIBase:  p.APIBase,
				}
			})
			return writeJSON(cmd, summaries)
		},
	}
}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand(ctx))
	configCmd.AddCommand(newConfigPathCommand(ctx))
	return configCmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a configuration file with the defaults",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(*ctx.configFlag)
			if target == "" {
				target = config.GetConfigPath()
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			cfg := config.Default()
			if err := config.Save(&cfg, target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote default configuration to %s\n", target)
			fmt.Fprintln(out, "Add api_keys under openai or anthropic (or export OPENAI_API_KEYS) before making calls.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), ctx.configPath)
			return err
		},
	}
}
