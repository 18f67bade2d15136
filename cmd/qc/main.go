package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"qc/internal/bootstrap"
	checkindto "qc/internal/modules/checkin/dto"
	"qc/internal/platform/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	dataDir  string
	coupleID string
	userID   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "qc",
		Short:         "Guided relationship check-ins for two",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data", ".", "directory holding .qc/ and check-in summaries")
	root.PersistentFlags().StringVar(&opts.coupleID, "couple", "", "couple id (overrides config)")
	root.PersistentFlags().StringVar(&opts.userID, "user", "", "your user id (overrides config)")

	root.AddCommand(newInitCmd(opts))
	root.AddCommand(newTUICmd(opts))
	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newStepCmd(opts))
	root.AddCommand(newDiscussCmd(opts))
	root.AddCommand(newNoteCmd(opts))
	root.AddCommand(newActionCmd(opts))
	root.AddCommand(newCompleteCmd(opts))
	root.AddCommand(newAbandonCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	return root
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.New(opts.dataDir)
	if err != nil {
		return config.Config{}, err
	}
	if opts.coupleID != "" {
		cfg.CoupleID = opts.coupleID
	}
	if opts.userID != "" {
		cfg.UserID = opts.userID
	}
	return cfg, nil
}

func loadApp(ctx context.Context, opts *rootOptions) (*bootstrap.App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg)
}

// withApp wires the app for one command and releases it afterwards.
func withApp(opts *rootOptions, fn func(ctx context.Context, app *bootstrap.App) error) error {
	ctx := context.Background()
	app, err := loadApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return fn(ctx, app)
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	var redisURL string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write couple and user ids to .qc/config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if redisURL != "" {
				cfg.RedisURL = redisURL
			}
			if err := cfg.ValidateIdentity(); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "configured couple=%s user=%s\n", cfg.CoupleID, cfg.UserID)
			return nil
		},
	}
	cmd.Flags().StringVar(&redisURL, "redis", "", "redis url for live sync between devices")
	return cmd
}

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the check-in wizard",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withApp(opts, func(_ context.Context, app *bootstrap.App) error {
				return bootstrap.RunTUI(app)
			})
		},
	}
}

func newStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start <category>...",
		Short: "Start a check-in over the given categories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.CheckInCLI.Start(ctx, args)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "started %s step=%s categories=%s\n", out.SessionID, out.CurrentStep, categoryList(out))
				return nil
			})
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active check-in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.CheckInCLI.Status(ctx)
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

func newStepCmd(opts *rootOptions) *cobra.Command {
	step := &cobra.Command{Use: "step", Short: "Move through the wizard"}

	step.AddCommand(&cobra.Command{
		Use:   "goto <step>",
		Short: "Jump to a step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.CheckInCLI.GoToStep(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "step=%s progress=%d%%\n", out.CurrentStep, out.Percentage)
				return nil
			})
		},
	})

	step.AddCommand(&cobra.Command{
		Use:   "done [step]",
		Short: "Mark a step complete (defaults to the current one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				target := ""
				if len(args) == 1 {
					target = args[0]
				} else {
					current, err := app.CheckInCLI.Status(ctx)
					if err != nil {
						return err
					}
					target = current.CurrentStep
				}
				out, err := app.CheckInCLI.CompleteStep(ctx, target)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "completed %s, now at %s (%d%%)\n", target, out.CurrentStep, out.Percentage)
				return nil
			})
		},
	})
	return step
}

func newDiscussCmd(opts *rootOptions) *cobra.Command {
	var minutes int
	var open bool
	cmd := &cobra.Command{
		Use:   "discuss <category>",
		Short: "Mark a category discussed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.CheckInCLI.DiscussCategory(ctx, args[0], minutes, !open)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "categories=%s\n", categoryList(out))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "minutes spent on the category")
	cmd.Flags().BoolVar(&open, "open", false, "keep the category open")
	return cmd
}

func newNoteCmd(opts *rootOptions) *cobra.Command {
	note := &cobra.Command{Use: "note", Short: "Draft notes for the active check-in"}

	var private bool
	var tags []string
	addCmd := &cobra.Command{
		Use:   "add <category> <text>",
		Short: "Add a note to a category",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			privacy := "shared"
			if private {
				privacy = "private"
			}
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.CheckInCLI.AddNote(ctx, args[0], strings.Join(args[1:], " "), privacy, tags)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "note %s (%s)\n", out.ID, out.Privacy)
				return nil
			})
		},
	}
	addCmd.Flags().BoolVar(&private, "private", false, "keep the note to yourself")
	addCmd.Flags().StringSliceVar(&tags, "tags", nil, "tags")

	var content, privacy string
	updateCmd := &cobra.Command{
		Use:   "update <note-id>",
		Short: "Edit a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.CheckInCLI.UpdateNote(ctx, args[0], content, privacy); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", args[0])
				return nil
			})
		},
	}
	updateCmd.Flags().StringVar(&content, "text", "", "new text")
	updateCmd.Flags().StringVar(&privacy, "privacy", "", "shared|private|draft")

	removeCmd := &cobra.Command{
		Use:   "remove <note-id>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.CheckInCLI.RemoveNote(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}

	note.AddCommand(addCmd, updateCmd, removeCmd)
	return note
}

func newActionCmd(opts *rootOptions) *cobra.Command {
	action := &cobra.Command{Use: "action", Short: "Action items agreed in the check-in"}

	var description, assignee, due string
	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add an action item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.CheckInCLI.AddActionItem(ctx, strings.Join(args, " "), description, assignee, due)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "action %s %q\n", out.ID, out.Title)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&description, "description", "", "details")
	addCmd.Flags().StringVar(&assignee, "assignee", "", "who owns it")
	addCmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List action items of the active check-in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				items, err := app.CheckInCLI.ListActionItems(ctx)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no action items")
					return nil
				}
				for _, item := range items {
					printActionItem(cmd.OutOrStdout(), item)
				}
				return nil
			})
		},
	}

	toggleCmd := &cobra.Command{
		Use:   "toggle <item-id>",
		Short: "Flip an action item between open and done",
		Long:  "Flip an action item between open and done.\n\n" +
			"Only items of the active check-in can be toggled. Items from earlier\n" +
			"check-ins are not loaded once no session is in progress.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.CheckInCLI.ToggleActionItem(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "toggled %s\n", args[0])
				return nil
			})
		},
	}

	var title, newAssignee, newDue string
	updateCmd := &cobra.Command{
		Use:   "update <item-id>",
		Short: "Edit an action item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.CheckInCLI.UpdateActionItem(ctx, args[0], title, newAssignee, newDue); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", args[0])
				return nil
			})
		},
	}
	updateCmd.Flags().StringVar(&title, "title", "", "new title")
	updateCmd.Flags().StringVar(&newAssignee, "assignee", "", "new owner")
	updateCmd.Flags().StringVar(&newDue, "due", "", "new due date YYYY-MM-DD, or none")

	removeCmd := &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Delete an action item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.CheckInCLI.RemoveActionItem(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}

	action.AddCommand(addCmd, listCmd, toggleCmd, updateCmd, removeCmd)
	return action
}

func newCompleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete",
		Short: "Finish the check-in and write its summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.CheckInCLI.Complete(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "completed %s duration=%dm progress=%d%% summary=%s\n",
					out.SessionID, out.DurationMin, out.Percentage, out.SummaryPath)
				return nil
			})
		},
	}
}

func newAbandonCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "abandon",
		Short: "Stop the check-in without a summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.CheckInCLI.Abandon(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "abandoned %s\n", out.SessionID)
				return nil
			})
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past check-in summaries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				records, err := app.CheckInCLI.History(ctx)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no check-ins yet")
					return nil
				}
				for _, r := range records {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%dm\t%d%%\t%s\t%s\n",
						r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status, r.DurationMin, r.Percentage,
						strings.Join(r.Categories, ","), r.Path)
				}
				return nil
			})
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print check-in changes from both devices until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			app, err := loadApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if metricsAddr != "" {
				server := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						app.Logger.Error("metrics server stopped", "error", err)
					}
				}()
				defer func() { _ = server.Close() }()
			}

			out := cmd.OutOrStdout()
			states := make(chan checkindto.StateOutput, 16)
			cancel := app.CheckInCLI.Watch(func(state checkindto.StateOutput) {
				select {
				case states <- state:
				default:
				}
			})
			defer cancel()

			if current, err := app.CheckInCLI.Status(ctx); err == nil {
				printSession(out, current)
			} else {
				_, _ = fmt.Fprintln(out, "no active check-in")
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case state := <-states:
					if !state.Active {
						_, _ = fmt.Fprintln(out, "no active check-in")
						continue
					}
					_, _ = fmt.Fprintf(out, "%s step=%s progress=%d%% items=%d\n",
						time.Now().Format("15:04:05"), state.Session.CurrentStep, state.Session.Percentage, len(state.ActionItems))
				}
			}
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}

func categoryList(out checkindto.SessionOutput) string {
	ids := make([]string, 0, len(out.Categories))
	for _, cp := range out.Categories {
		id := cp.CategoryID
		if cp.Completed {
			id += "✓"
		}
		ids = append(ids, id)
	}
	return strings.Join(ids, ",")
}

func printSession(w io.Writer, out checkindto.SessionOutput) {
	_, _ = fmt.Fprintf(w, "check-in %s\n", out.SessionID)
	_, _ = fmt.Fprintf(w, "step:       %s (%d%%)\n", out.CurrentStep, out.Percentage)
	_, _ = fmt.Fprintf(w, "completed:  %s\n", strings.Join(out.CompletedSteps, ", "))
	_, _ = fmt.Fprintf(w, "categories: %s\n", categoryList(out))
	_, _ = fmt.Fprintf(w, "started:    %s\n", out.StartedAt.Local().Format("2006-01-02 15:04"))
	for _, note := range out.Notes {
		_, _ = fmt.Fprintf(w, "  [%s] %s %s: %s\n", note.Privacy, note.ID, note.CategoryID, note.Content)
	}
}

func printActionItem(w io.Writer, item checkindto.ActionItemOutput) {
	mark := " "
	if item.Completed {
		mark = "x"
	}
	line := fmt.Sprintf("[%s] %s %s", mark, item.ID, item.Title)
	if item.AssignedTo != "" {
		line += " @" + item.AssignedTo
	}
	if item.DueDate != nil {
		line += " due " + item.DueDate.Format("2006-01-02")
	}
	_, _ = fmt.Fprintln(w, line)
}
