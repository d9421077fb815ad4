package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mytodos/internal/session"
)

func (a *App) signupCmd() *cobra.Command {
	var password, confirm string

	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			if password == "" {
				if password, err = promptPassword(cmd, "Password: "); err != nil {
					return err
				}
				if !cmd.Flags().Changed("confirm") {
					if confirm, err = promptPassword(cmd, "Confirm password: "); err != nil {
						return err
					}
				}
			} else if !cmd.Flags().Changed("confirm") {
				confirm = password
			}

			if err := s.ctl.Signup(ctx, args[0], password, confirm); err != nil {
				return s.failure(err)
			}
			if err := s.saveSignIn(ctx, a.cfg.Client.BaseURL); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted for when omitted)")
	cmd.Flags().StringVar(&confirm, "confirm", "", "Password confirmation (defaults to --password)")
	return cmd
}

func (a *App) loginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in to an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}

			if password == "" {
				if password, err = promptPassword(cmd, "Password: "); err != nil {
					return err
				}
			}

			if err := s.ctl.Login(ctx, args[0], password); err != nil {
				return s.failure(err)
			}
			if err := s.saveSignIn(ctx, a.cfg.Client.BaseURL); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted for when omitted)")
	return cmd
}

func (a *App) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}

			if err := s.ctl.Logout(ctx); err != nil {
				return s.failure(err)
			}
			if err := s.creds.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (a *App) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			if _, ok := s.client.CurrentUserID(); !ok {
				return session.ErrNotSignedIn
			}

			user, err := s.client.WhoAmI(ctx)
			if err != nil {
				return fmt.Errorf("failed to look up session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for password prompt (use --password)")
	}

	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
