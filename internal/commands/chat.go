package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"RecipeChat/internal/chatbot"
	"RecipeChat/internal/forms"
	"RecipeChat/internal/handoff"
	"RecipeChat/internal/recipe"
	"RecipeChat/internal/render"
)

var (
	uploadImage        string
	uploadInstructions string
	uploadNoChat       bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the recipe chat",
	RunE:  withApp(runChat),
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Generate a recipe from a food photo and discuss it in the chat",
	Example: `  recipechat upload --image dinner.jpg --instructions "make it vegetarian"
  recipechat upload   # asks for the photo and instructions`,
	RunE: withApp(runUpload),
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadImage, "image", "i", "", "Photo of the dish or ingredients")
	uploadCmd.Flags().StringVar(&uploadInstructions, "instructions", "", "What kind of recipe you want")
	uploadCmd.Flags().BoolVar(&uploadNoChat, "no-chat", false, "Print the recipe instead of opening the chat")

	rootCmd.AddCommand(chatCmd, uploadCmd)
}

func runChat(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
	app.EnsureProfile(ctx)

	bot := chatbot.NewChatBot(app.NewChat(), app.Backend, app.Session, app.Logger,
		chatbot.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()),
		chatbot.WithForms(app.Forms),
	)
	return bot.Run(ctx)
}

func runUpload(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
	in := forms.Upload{ImagePath: uploadImage, Instructions: uploadInstructions}
	if forms.ImagePath(in.ImagePath) != nil || strings.TrimSpace(in.Instructions) == "" {
		var err error
		if in, err = app.Forms.Upload(ctx, in); err != nil {
			return forms.WrapAbort(err)
		}
	}

	f, err := os.Open(in.ImagePath)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(cmd.OutOrStdout(), "Generating your recipe...")
	raw, err := app.Backend.GenerateRecipe(ctx, f, filepath.Base(in.ImagePath), in.Instructions)
	if err != nil {
		return fmt.Errorf("failed to generate recipe: %w", err)
	}

	if uploadNoChat {
		fmt.Fprintln(cmd.OutOrStdout(), render.Recipe(recipe.Normalize(raw)))
		return nil
	}

	app.Handoff.Put(handoff.Pending{Recipe: raw, Origin: handoff.OriginUpload})
	return runChat(ctx, cmd, app, nil)
}
