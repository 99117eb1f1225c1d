package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/aschepis/backscratcher/llmshim/llm/openai"
	"github.com/spf13/cobra"
)

// conversational is implemented by the chat models of every provider.
type conversational interface {
	llm.BatchModel
	GenerateMessages(ctx context.Context, msgs []llm.Message) (llm.Result, error)
}

func newChatCommand(ctx *commandContext) *cobra.Command {
	var modelName string
	var system string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "chat <prompt>",
		Short: "Send a prompt to a chat model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := ctx.buildModel(modelName)
			if err != nil {
				return err
			}
			chat, ok := model.(conversational)
			if !ok {
				return fmt.Errorf("model %q does not support chat", model.Modality())
			}

			var msgs []llm.Message
			if system != "" {
				msgs = append(msgs, llm.NewTextMessage(llm.RoleSystem, system))
			}
			msgs = append(msgs, llm.NewTextMessage(llm.RoleUser, strings.Join(args, " ")))

			result, err := chat.GenerateMessages(cmd.Context(), msgs)
			if err != nil {
				return err
			}
			return writeResult(cmd, result, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Registered model name (default from config)")
	cmd.Flags().StringVarP(&system, "system", "s", "", "System prompt")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result as JSON")
	return cmd
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var modelName string

	cmd := &cobra.Command{
		Use:   "batch <prompt>...",
		Short: "Send each prompt as its own concurrent call and print the results in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := ctx.buildModel(modelName)
			if err != nil {
				return err
			}
			batch, ok := model.(llm.BatchModel)
			if !ok {
				return fmt.Errorf("model does not support batches")
			}
			results, err := batch.GenerateBatch(cmd.Context(), args)
			if err != nil {
				return err
			}
			return writeJSON(cmd, results)
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Registered model name (default from config)")
	return cmd
}

func newCompleteCommand(ctx *commandContext) *cobra.Command {
	var modelName string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "complete <prompt>",
		Short: "Complete a prompt with a completion model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := ctx.buildModel(modelName)
			if err != nil {
				return err
			}
			if model.Modality() != llm.ModalityCompletion {
				return fmt.Errorf("model %q serves %s, not completion", modelName, model.Modality())
			}
			result, err := model.Generate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writeResult(cmd, result, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", llm.DefaultChatModel, "Registered completion model name")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result as JSON")
	return cmd
}

func newEmbedCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed <text>...",
		Short: "Embed each argument and print the vectors as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := ctx.buildModel(openai.EmbeddingModelName)
			if err != nil {
				return err
			}
			batch, ok := model.(llm.BatchModel)
			if !ok {
				return fmt.Errorf("embedding model does not support batches")
			}
			results, err := batch.GenerateBatch(cmd.Context(), args)
			if err != nil {
				return err
			}
			return writeJSON(cmd, results)
		},
	}
	return cmd
}

func writeResult(cmd *cobra.Command, result llm.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, result)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), result.Content)
	return err
}
