package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"playsync/config"
	"playsync/core"
	"playsync/engine"
	sdk "playsync/sdk/go"
)

type cliOptions struct {
	envFiles   []string
	configPath string
	profile    string
	serverURL  string
	apiKey     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "playsync",
		Short:         "playsync: best-effort achievements and leaderboard sync with a games service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.profile != "" {
				if err := os.Setenv("PLAYSYNC_PROFILE", opts.profile); err != nil {
					return err
				}
			}
			if _, err := config.LoadDotEnv(opts.envFiles...); err != nil {
				return fmt.Errorf("env file: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "KEY=VALUE files loaded before configuration; existing variables win")
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a JSON config file (default: environment only)")
	rootCmd.PersistentFlags().StringVarP(&opts.profile, "profile", "p", "", "Configuration profile: development | testing | staging | production")
	rootCmd.PersistentFlags().StringVar(&opts.serverURL, "server", "", "Drive a running sidecar at this base URL instead of local storage (e.g. http://127.0.0.1:8787/api)")
	rootCmd.PersistentFlags().StringVar(&opts.apiKey, "api-key", "", "API key for --server")

	var syncUser string
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local and remote achievements and scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b backend) (any, error) {
				return b.Sync(ctx, syncUser)
			})
		},
	}
	syncCmd.Flags().StringVarP(&syncUser, "user", "u", "", "User whose leaderboard score is reconciled (default: signed-in player)")

	progressCmd := &cobra.Command{
		Use:   "progress <achievement> [steps]",
		Short: "Advance an achievement",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := int64(1)
			if len(args) == 2 {
				n, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer: %q", args[1])
				}
				steps = n
			}
			return withBackend(cmd, opts, func(ctx context.Context, b backend) (any, error) {
				return b.Progress(ctx, args[0], steps)
			})
		},
	}

	scoreCmd := &cobra.Command{
		Use:   "score <user> <value>",
		Short: "Post a leaderboard score",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("value must be an integer: %q", args[1])
			}
			return withBackend(cmd, opts, func(ctx context.Context, b backend) (any, error) {
				return b.PostScore(ctx, args[0], value)
			})
		},
	}

	achievementsCmd := &cobra.Command{
		Use:   "achievements",
		Short: "List local achievement progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b backend) (any, error) {
				return b.Achievements(ctx)
			})
		},
	}

	pushCmd := &cobra.Command{
		Use:   "push",
		Short: "Send unsent achievement progress to the games service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b backend) (any, error) {
				n, err := b.Push(ctx)
				return map[string]int{"pushed": n}, err
			})
		},
	}

	var topN int
	leaderboardCmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the locally cached leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b backend) (any, error) {
				return b.Leaderboard(ctx, topN)
			})
		},
	}
	leaderboardCmd.Flags().IntVarP(&topN, "n", "n", 10, "Number of entries")

	signinCmd := &cobra.Command{
		Use:   "signin",
		Short: "Check authentication with the games service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b backend) (any, error) {
				return b.SignIn(ctx)
			})
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local sidecar HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	rootCmd.AddCommand(syncCmd, progressCmd, scoreCmd, achievementsCmd, pushCmd, leaderboardCmd, signinCmd, serveCmd)
	return rootCmd
}

// withBackend resolves the backend, runs fn and prints its result as JSON.
func withBackend(cmd *cobra.Command, opts *cliOptions, fn func(context.Context, backend) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.serverURL != "" {
		client, err := sdk.NewClient(opts.serverURL, sdk.WithAPIKey(opts.apiKey))
		if err != nil {
			return err
		}
		out, err := fn(ctx, client)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	}

	app, cleanup, err := BuildApp(ctx, ConfigPath(opts.configPath))
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer cleanup()

	out, err := fn(ctx, localBackend{client: app.Client})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServe(parent context.Context, opts *cliOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := BuildApp(ctx, ConfigPath(opts.configPath))
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer cleanup()

	cfg := app.Config
	app.Logger.Info("starting playsync sidecar",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"local_adapter", cfg.Local.Adapter,
		"remote_adapter", cfg.Remote.Adapter,
		"remote_available", app.Client.RemoteAvailable())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.Logger.Info("server listening", "address", cfg.Server.Address)
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.Logger.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := app.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil
	})
	if cfg.Sync.Interval > 0 {
		g.Go(func() error {
			return periodicSync(gctx, app.Client, core.UserID(cfg.Sync.User), cfg.Sync.Interval, app.Logger)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	app.Logger.Info("server stopped")
	return nil
}

// periodicSync runs Sync every interval until ctx is done. Local storage
// failures are logged and retried on the next tick.
func periodicSync(ctx context.Context, client *engine.Client, user core.UserID, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := client.Sync(ctx, user)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("periodic sync failed", "error", err)
				continue
			}
			logger.Debug("periodic sync completed",
				"user", report.User,
				"remote_attempted", report.RemoteAttempted,
				"achievements_changed", len(report.AchievementsChanged),
				"score_changed", report.ScoreChanged)
		}
	}
}
