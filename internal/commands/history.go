package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"RecipeChat/internal/render"
	"RecipeChat/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [transcript-id]",
	Short: "List past chats or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
		if len(args) == 1 {
			t, err := app.Transcripts.Load(ctx, args[0])
			if errors.Is(err, store.ErrTranscriptNotFound) {
				return fmt.Errorf("no chat with id %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Transcript(t))
			return nil
		}

		list, err := app.Transcripts.List(ctx, historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), render.Summaries(list))
		return nil
	}),
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of chats to list")

	rootCmd.AddCommand(historyCmd, configCmd)
}
