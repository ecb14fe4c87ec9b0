package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/sadopc/taskdeck/internal/api"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Args:  cobra.NoArgs,
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return logout(env, cmd.OutOrStdout())
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return whoami(cmd.Context(), env, cmd.OutOrStdout())
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().String("email", "", "Account email")
		c.Flags().String("password", "", "Account password (prompted when omitted)")
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	if email == "" || password == "" {
		if err := promptCredentials(&email, &password, nil); err != nil {
			return err
		}
	}
	return login(cmd.Context(), env, cmd.OutOrStdout(), email, password)
}

func runRegister(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	confirm := password
	if email == "" || password == "" {
		if err := promptCredentials(&email, &password, &confirm); err != nil {
			return err
		}
	}
	return register(cmd.Context(), env, cmd.OutOrStdout(), email, password, confirm)
}

// promptCredentials asks for whatever is missing. A non-nil confirm adds a
// repeat-password field.
func promptCredentials(email, password, confirm *string) error {
	fields := []huh.Field{
		huh.NewInput().Title("Email").Value(email).Validate(api.ValidateEmail),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(password),
	}
	if confirm != nil {
		fields = append(fields, huh.NewInput().Title("Confirm password").
			EchoMode(huh.EchoModePassword).
			Value(confirm).
			Validate(func(s string) error {
				return api.ValidateRegistration(*email, *password, s)
			}))
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

func login(ctx context.Context, e *environment, w io.Writer, email, password string) error {
	email = strings.TrimSpace(email)
	if err := api.ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return api.ErrMissingCredentials
	}

	user, err := e.client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	if err := e.store.SetUser(user.ID, user.Email); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(w, "Signed in as %s\n", user.Email)
	return nil
}

func register(ctx context.Context, e *environment, w io.Writer, email, password, confirm string) error {
	email = strings.TrimSpace(email)
	if err := api.ValidateRegistration(email, password, confirm); err != nil {
		return err
	}
	if _, err := e.client.Register(ctx, email, password); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	fmt.Fprintf(w, "Account created for %s\n", email)
	return login(ctx, e, w, email, password)
}

func logout(e *environment, w io.Writer) error {
	if err := e.client.Logout(); err != nil {
		return err
	}
	e.tasks.Reset()
	if err := e.store.SetUser("", ""); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	fmt.Fprintln(w, "Signed out")
	return nil
}

func whoami(ctx context.Context, e *environment, w io.Writer) error {
	user, err := e.client.Verify(ctx)
	if err != nil {
		return sessionHint(err)
	}
	fmt.Fprintf(w, "%s (%s)\n", user.Email, user.ID)
	return nil
}

// requireSession fails fast, without a request, when there is no usable
// token.
func requireSession(e *environment) error {
	tok, err := e.client.Tokens().Token()
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if tok == "" {
		return sessionHint(api.ErrNotAuthenticated)
	}
	if api.TokenExpired(tok, time.Now()) {
		if err := e.client.Logout(); err != nil {
			return err
		}
		return sessionHint(api.ErrSessionExpired)
	}
	return nil
}

// sessionHint points the user at login for authentication failures.
func sessionHint(err error) error {
	switch {
	case errors.Is(err, api.ErrNotAuthenticated):
		return fmt.Errorf("%w: run `taskdeck login` first", err)
	case errors.Is(err, api.ErrSessionExpired), api.IsStatus(err, http.StatusUnauthorized):
		return fmt.Errorf("%w: run `taskdeck login` again", err)
	}
	return err
}
