package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"RecipeChat/internal/backend"
	"RecipeChat/internal/forms"
	"RecipeChat/internal/session"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the recipe service",
	RunE:  withApp(runLogin),
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE:  withApp(runRegister),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
		app.Session.Clear()
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	}),
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (skips the form together with --password)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd)
}

func runLogin(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
	in := forms.Login{Email: loginEmail, Password: loginPassword}
	if in.Email == "" || in.Password == "" {
		var err error
		if in, err = app.Forms.Login(ctx); err != nil {
			return forms.WrapAbort(err)
		}
	}

	if _, err := app.Backend.Login(ctx, in.Email, in.Password); err != nil {
		switch {
		case errors.Is(err, backend.ErrUnauthorized):
			return fmt.Errorf("login failed: check your email and password")
		case errors.Is(err, session.ErrMissingToken):
			return fmt.Errorf("login failed: the server did not return a session token")
		default:
			return fmt.Errorf("login failed: %w", err)
		}
	}

	user, err := app.Backend.FetchProfile(ctx)
	if err != nil {
		app.Logger.Warn("failed to fetch profile after login, using fallback", "error", err)
		user = session.User{Username: "user", Email: in.Email}
		app.Session.SetProfile(user)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s!\n", user.Username)
	return nil
}

func runRegister(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
	req, err := app.Forms.Register(ctx)
	if err != nil {
		return forms.WrapAbort(err)
	}

	if err := app.Backend.Register(ctx, req); err != nil {
		if errors.Is(err, backend.ErrConflict) {
			return fmt.Errorf("that email is already in use")
		}
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Registration complete. Log in with: recipechat login")
	return nil
}
