package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"upder/internal/app"
	"upder/internal/config"
	"upder/internal/debug"
	appErrors "upder/internal/errors"
	"upder/internal/history"
	"upder/internal/process"
	"upder/internal/update"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type rootFlags struct {
	generate   bool
	history    int
	version    bool
	configPath string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:           "upder",
		Short:         "Update rustup, flutter and rust-analyzer",
		Long:          "upder updates the rustup toolchains, the Flutter SDK and the nightly rust-analyzer build in one run.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.version {
				printVersion(stdout)
				return nil
			}

			showRuns := cmd.Flags().Changed("history")
			if showRuns && flags.history < 1 {
				return appErrors.New(appErrors.CodeConfigurationError,
					fmt.Sprintf("--history must be at least 1, got %d", flags.history), nil)
			}

			cfg, err := config.Load(
				config.WithUserConfig(flags.configPath),
				config.WithFlags(cmd.Flags()),
			)
			if err != nil {
				return err
			}

			var logOpts []debug.Option
			if dir := cfg.DataDir(); dir != "" {
				logOpts = append(logOpts, debug.WithLogPath(filepath.Join(dir, debug.LogFileName)))
			}
			if err := debug.Init(cfg.Debug, logOpts...); err != nil {
				_, _ = fmt.Fprintf(stderr, "Warning: debug log disabled: %v\n", err)
			}
			defer debug.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if showRuns {
				return showHistory(ctx, cfg, flags.history, stdout)
			}
			return runUpdate(ctx, cfg, flags.generate, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.BoolVarP(&flags.generate, "gen", "g", false, "install a systemd user timer that runs upder daily")
	f.IntVar(&flags.history, "history", 0, "print the last `N` runs and exit")
	f.BoolVar(&flags.version, "version", false, "print version information and exit")
	f.StringVar(&flags.configPath, "config", "", "config file (default ~/.upder/config.yaml)")
	f.Bool(config.KeyDebug, false, "write a debug log to <data-home>/upder/debug.log")
	f.String(config.KeyReleaseHost, config.DefaultReleaseHost, "host serving release downloads")
	f.String(config.KeyScheduleExec, "", "command the systemd timer runs (default: this executable)")
	return cmd
}

func runUpdate(ctx context.Context, cfg *config.Config, generate bool, stdout, stderr io.Writer) error {
	t := detectTerminal(stdout)
	applyColorProfile(t)

	report := newStepReport(stdout)
	fetcher := update.NewFetcher(
		update.WithHTTPClient(update.NewHTTPClient(cfg.ConnectTimeout, cfg.MaxRedirects)),
		update.WithChunkSize(cfg.ChunkSize),
		update.WithProgress(newProgressBar(stdout, t)),
	)

	opts := []app.Option{app.WithReporter(report)}
	if store := openLedger(ctx, cfg, stderr); store != nil {
		defer func() {
			_ = store.Close()
		}()
		opts = append(opts, app.WithLedger(store))
	}

	a := app.New(cfg, app.Deps{
		Runner:       process.NewExecRunner(process.WithStderr(stderr)),
		Installer:    fetcher,
		ToolReporter: report,
		Output:       stdout,
	}, opts...)
	return a.Run(ctx, app.Options{Generate: generate})
}

// openLedger opens the history database. The run goes ahead without it when
// history is disabled or the database cannot be opened.
func openLedger(ctx context.Context, cfg *config.Config, stderr io.Writer) *history.Store {
	if !cfg.HistoryEnabled {
		return nil
	}
	path := cfg.HistoryDBPath()
	if path == "" {
		debug.Log("history: no data directory, not recording")
		return nil
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		debug.WithFields(logrus.Fields{"path": path, "error": err}).Warn("history: open failed")
		_, _ = fmt.Fprintf(stderr, "Warning: run history disabled: %v\n", err)
		return nil
	}
	return store
}

func showHistory(ctx context.Context, cfg *config.Config, limit int, stdout io.Writer) error {
	path := cfg.HistoryDBPath()
	if path == "" {
		return appErrors.EnvMissing("HOME")
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprint(stdout, renderHistory(nil, detectTerminal(stdout)))
		return nil
	}

	store, err := history.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	_, _ = fmt.Fprint(stdout, renderHistory(runs, detectTerminal(stdout)))
	return nil
}
