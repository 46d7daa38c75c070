package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/seismolink/siteapi/runner"
	"github.com/seismolink/siteapi/runner/mailrunner"
	"github.com/seismolink/siteapi/runner/migraterunner"
	"github.com/seismolink/siteapi/runner/serverrunner"
)

type factory func(*runner.Config, *zap.Logger) (runner.Runner, error)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := runner.NewViper()

	root := &cobra.Command{
		Use:           "siteapi",
		Short:         "Backend for the company website: forms, careers, admin inbox and analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return runner.BindFlags(v, cmd.Flags())
		},
	}

	pf := root.PersistentFlags()
	pf.Bool("debug", false, "enable debug logging")
	pf.String("mongodb-uri", "", "mongodb:// URI, or a SQLite file path (env MONGODB_URI)")
	pf.String("db-name", "", "MongoDB database name (env DB_NAME)")
	pf.String("redis-url", "", "redis://host:6379/0 for cache, limiter, lockout and mail queue (env REDIS_URL)")

	root.AddCommand(
		newServeCmd(v),
		newWorkerCmd(v),
		newRunnerCmd(v, "migrate", "Apply SQLite migrations or ensure MongoDB indexes", migraterunner.New),
		newVersionCmd(),
	)

	return root
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := newRunnerCmd(v, "serve", "Run the HTTP API", serverrunner.New)

	f := cmd.Flags()
	f.String("port", "", "HTTP port (env PORT)")
	f.String("jobs-file", "", "YAML file overriding the built-in job openings (env JOBS_FILE)")
	f.String("cors-origins", "", "comma separated allowed origins, * for any (env CORS_ORIGINS)")
	f.Bool("trust-proxy", false, "take the client IP from X-Forwarded-For (env TRUST_PROXY)")
	f.Bool("mail-queue", false, "queue outgoing mail in Redis and deliver it from an embedded worker (env MAIL_QUEUE)")
	f.String("timezone", "", "IANA timezone for daily analytics (env TIMEZONE)")
	f.Bool("disable-cache", false, "read admin stats and the dashboard from the database on every request (env DISABLE_CACHE)")

	return cmd
}

func newWorkerCmd(v *viper.Viper) *cobra.Command {
	cmd := newRunnerCmd(v, "worker", "Deliver queued emails", mailrunner.New)
	cmd.Flags().Int("worker-concurrency", 0, "concurrent deliveries (env WORKER_CONCURRENCY)")

	return cmd
}

func newRunnerCmd(v *viper.Viper, use, short string, newRunner factory) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := runner.LoadConfig(v)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.Debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if use == "serve" {
				runner.Banner(cfg.SiteName)
			}

			if err := run(cmd.Context(), cfg, logger, newRunner); err != nil {
				logger.Error("exiting", zap.String("command", use), zap.Error(err))
				return err
			}

			return nil
		},
	}
}

func run(parent context.Context, cfg *runner.Config, logger *zap.Logger, newRunner factory) error {
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runnerInstance, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}

	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		if err := runnerInstance.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	err = egroup.Wait()

	logger.Info("shutting down")

	return errors.Join(err, runnerInstance.Close(context.Background()))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "siteapi %s (commit %s, built %s)\n",
				runner.Version, runner.Commit, runner.BuildDate)
		},
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
	}

	return cfg.Build()
}
