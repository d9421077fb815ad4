package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mytodos/internal/models"
	"mytodos/internal/tui"
)

// shortIDLength is how much of an item id the list output shows.
const shortIDLength = 8

var errNoMatch = errors.New("no todo matches")

func (a *App) listCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List todos, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := models.ParseFilterMode(filter)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			if err := s.ctl.Load(ctx); err != nil {
				return s.failure(err)
			}

			s.ctl.SetFilter(mode)
			printItems(cmd.OutOrStdout(), s.ctl.VisibleItems())
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "Filter: all|active|completed")
	return cmd
}

func (a *App) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>",
		Short: "Add a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if err := models.ValidateText(text); err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}

			s.ctl.SetInput(text)
			if err := s.ctl.Submit(ctx); err != nil {
				return s.failure(err)
			}
			printItems(cmd.OutOrStdout(), s.ctl.VisibleItems())
			return nil
		},
	}
}

func (a *App) toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Mark a todo done or not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			if err := s.ctl.Load(ctx); err != nil {
				return s.failure(err)
			}

			id, err := resolveID(s.ctl.Items(), args[0])
			if err != nil {
				return err
			}
			if err := s.ctl.ToggleItem(ctx, id); err != nil {
				return s.failure(err)
			}
			printItems(cmd.OutOrStdout(), s.ctl.VisibleItems())
			return nil
		},
	}
}

func (a *App) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a todo",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			if err := s.ctl.Load(ctx); err != nil {
				return s.failure(err)
			}

			// An id nobody has is passed through; deleting it succeeds.
			id, err := resolveID(s.ctl.Items(), args[0])
			if errors.Is(err, errNoMatch) {
				id = args[0]
			} else if err != nil {
				return err
			}
			if err := s.ctl.DeleteItem(ctx, id); err != nil {
				return s.failure(err)
			}
			printItems(cmd.OutOrStdout(), s.ctl.VisibleItems())
			return nil
		},
	}
}

func (a *App) tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive todo list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			if _, ok := s.client.CurrentUserID(); !ok {
				return fmt.Errorf("not signed in: run 'mytodos login' first")
			}
			return tui.Run(ctx, s.ctl)
		},
	}
}

// resolveID finds the item whose id equals ref or uniquely starts with it.
func resolveID(list []models.Item, ref string) (string, error) {
	var matches []string
	for _, item := range list {
		if item.ID == ref {
			return item.ID, nil
		}
		if strings.HasPrefix(item.ID, ref) {
			matches = append(matches, item.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w %q", errNoMatch, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q matches %d todos", ref, len(matches))
	}
}

func printItems(w io.Writer, list []models.Item) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No todos")
		return
	}
	for _, item := range list {
		check := "[ ]"
		if item.Completed {
			check = "[x]"
		}
		id := item.ID
		if len(id) > shortIDLength {
			id = id[:shortIDLength]
		}
		fmt.Fprintf(w, "%s %s %s\n", id, check, item.Text)
	}
}
