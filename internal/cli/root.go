// Package cli wires configuration, the API server and the todo client into a
// cobra command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"mytodos/internal/config"
	"mytodos/internal/credentials"
	"mytodos/internal/items"
	"mytodos/internal/remote"
	"mytodos/internal/session"
)

// App carries state shared by every command.
type App struct {
	configPath string
	cfg        config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}

	root := &cobra.Command{
		Use:           "mytodos",
		Short:         "Personal todo list with a sync server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(app.configPath)
			if err != nil {
				return err
			}
			app.cfg = cfg
			return setupLogging(cmd.ErrOrStderr(), cfg.Log)
		},
	}

	root.PersistentFlags().StringVar(&app.configPath, "config", os.Getenv("MYTODOS_CONFIG"), "Path to a YAML config file")

	root.AddCommand(
		app.serveCmd(),
		app.signupCmd(),
		app.loginCmd(),
		app.logoutCmd(),
		app.whoamiCmd(),
		app.listCmd(),
		app.addCmd(),
		app.toggleCmd(),
		app.rmCmd(),
		app.tuiCmd(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

func setupLogging(w io.Writer, cfg config.LogConfig) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// clientSession is a controller over the remote API plus the credentials file
// backing it.
type clientSession struct {
	client *remote.Client
	creds  *credentials.File
	ctl    *session.Controller
}

// openSession builds a remote client and restores the saved sign-in when it
// was made against the configured server.
func (a *App) openSession(ctx context.Context) (*clientSession, error) {
	client := remote.New(a.cfg.Client.BaseURL, &http.Client{Timeout: a.cfg.Client.Timeout})
	creds := credentials.NewFile(a.cfg.Client.CredentialsPath)

	saved, err := creds.Load(ctx)
	switch {
	case err == nil:
		if saved.BaseURL == a.cfg.Client.BaseURL {
			client.Restore(saved.Token, saved.User)
		} else {
			slog.Debug("ignoring credentials for another server", "saved", saved.BaseURL, "configured", a.cfg.Client.BaseURL)
		}
	case errors.Is(err, credentials.ErrNone):
	default:
		return nil, err
	}

	return &clientSession{
		client: client,
		creds:  creds,
		ctl:    session.NewController(client, items.NewAdapter(client)),
	}, nil
}

// saveSignIn persists the client's current sign-in.
func (s *clientSession) saveSignIn(ctx context.Context, baseURL string) error {
	token, user, ok := s.client.Credentials()
	if !ok {
		return session.ErrNotSignedIn
	}
	return s.creds.Save(ctx, credentials.Credentials{BaseURL: baseURL, Token: token, User: user})
}

// failure prefers the controller's user-facing message over the raw error.
func (s *clientSession) failure(err error) error {
	if msg, ok := s.ctl.Error().Get(); ok {
		slog.Debug("operation failed", "err", err)
		return errors.New(msg)
	}
	return err
}
