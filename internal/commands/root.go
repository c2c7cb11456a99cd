package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"RecipeChat/internal/config"
)

var (
	configPath string
	debug      bool
	accessible bool
	version    = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recipechat",
	Short: "Chat with a recipe assistant from your terminal",
	Long: `RecipeChat turns a food photo into a recipe and lets you talk it through
with a cooking assistant.

Quick Start:
  recipechat register                 # Create an account
  recipechat login                    # Log in
  recipechat upload --image dish.jpg  # Generate a recipe and open the chat
  recipechat chat                     # Open the chat`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./recipechat.yaml or ~/.config/recipechat/recipechat.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&accessible, "accessible", false, "Use plain prompts instead of interactive forms")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadConfig applies the global flags on top of the loaded configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Log.Debug = true
	}
	return cfg, nil
}

// withApp builds the App for a command and releases it afterwards
func withApp(run func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		app, err := NewApp(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), accessible)
		if err != nil {
			return err
		}
		defer app.Close()
		return run(ctx, cmd, app, args)
	}
}
