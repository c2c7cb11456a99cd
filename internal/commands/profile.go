package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"RecipeChat/internal/forms"
	"RecipeChat/internal/session"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show your profile",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
		if !app.Session.Authenticated() {
			return fmt.Errorf("not logged in: run 'recipechat login'")
		}
		user, err := app.Backend.FetchProfile(ctx)
		if err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		printProfile(cmd.OutOrStdout(), user)
		return nil
	}),
}

var profileEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit your profile",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
		if !app.Session.Authenticated() {
			return fmt.Errorf("not logged in: run 'recipechat login'")
		}
		current, err := app.Backend.FetchProfile(ctx)
		if err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}

		upd, err := app.Forms.EditProfile(ctx, current)
		if err != nil {
			return forms.WrapAbort(err)
		}
		user, err := app.Backend.UpdateProfile(ctx, upd)
		if err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Profile updated.")
		printProfile(cmd.OutOrStdout(), user)
		return nil
	}),
}

func init() {
	profileCmd.AddCommand(profileEditCmd)
	rootCmd.AddCommand(profileCmd)
}

func printProfile(w io.Writer, u session.User) {
	fmt.Fprintf(w, "Name:       %s\n", u.Username)
	fmt.Fprintf(w, "Email:      %s\n", u.Email)
	if u.Age > 0 {
		fmt.Fprintf(w, "Age:        %d\n", u.Age)
	}
	if u.Height > 0 {
		fmt.Fprintf(w, "Height:     %.0f cm\n", u.Height)
	}
	if u.Weight > 0 {
		fmt.Fprintf(w, "Weight:     %.0f kg\n", u.Weight)
	}
	if u.Habit != "" {
		fmt.Fprintf(w, "Habit:      %s\n", habitLabel(u.Habit))
	}
	if u.Preference != "" {
		fmt.Fprintf(w, "Preference: %s\n", u.Preference)
	}
}

func habitLabel(value string) string {
	for _, opt := range forms.Habits {
		if opt.Value == value {
			return opt.Key
		}
	}
	return value
}
