package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"atf/internal/command"
	"atf/internal/config"
	"atf/internal/logging"
	"atf/internal/parser"
	"atf/internal/shell"
	"atf/internal/storage"
	"atf/internal/ui"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "atf",
		Short:         "Task manager with undo, redo and recurring tasks",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			return ui.Run(cmd.Context(), a.session, a.cfg)
		},
	}

	rootCmd.AddCommand(execCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command line>",
		Short: "Run one command line and print the result",
		Example: `  atf exec add "pay rent" by 2016-04-05 17:00
  atf exec edit all 1 st 14:00`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			reply := a.session.Handle(cmd.Context(), strings.Join(args, " "))
			for _, m := range reply.Messages {
				fmt.Fprintln(out, m)
			}
			if reply.Err != nil {
				return errors.New(shell.ErrorLine(reply.Err))
			}
			printLines(out, shell.Lines(a.session.Engine.Shown()))
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the task list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if filter != "" {
				if filter != shell.FilterAll && filter != shell.FilterPending {
					return errors.New("filter must be all or pending")
				}
				a.session.Filter = filter
				a.session.Refresh()
			}
			printLines(cmd.OutOrStdout(), shell.Lines(a.session.Engine.Shown()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "all or pending (default from config)")
	return cmd
}

func printLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *storage.Store
	session *shell.Session
	closers []io.Closer
}

// openApp loads config, opens storage and restores the saved list. The TUI
// logs to the configured file; other commands log to stderr.
func openApp(ctx context.Context, logToFile bool) (*app, error) {
	cfg, err := config.LoadOrCreate(config.ResolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if logToFile && cfg.LogFile != "" {
		logger, closer, err := logging.NewFile(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		a.logger = logger
		a.closers = append(a.closers, closer)
	} else {
		a.logger = logging.New(cfg.LogLevel, os.Stderr)
	}

	store, err := storage.Open(ctx, cfg.DBPath, loc)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.store = store

	engine := command.NewEngine(store, command.Options{
		Location:     loc,
		HistoryLimit: cfg.HistoryLimit,
		Logger:       a.logger,
	})
	if _, err := engine.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	a.session = shell.NewSession(engine, parser.New(loc), cfg.DefaultFilter, a.logger)
	a.session.Open = func(ctx context.Context, path string) (shell.Archive, error) {
		st, err := storage.Open(ctx, path, loc)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close database", "err", err)
		}
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
}
