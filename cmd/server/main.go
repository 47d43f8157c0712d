/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the contract engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, contracts.yaml, .env, environment, flags)
  2. Initialize logger
  3. Initialize SQLite store
  4. Create API handler and renewal reminder scheduler
  5. Start server with graceful shutdown

COMMANDS:
  server                   Run the HTTP server (default)
  server check-renewals    Record due renewal reminders once and exit

COMMAND-LINE FLAGS:
  --port        HTTP server port (default: 8080)
  --db          SQLite database path (default: ./data/contracts.db)
                Use ":memory:" for in-memory database
  --log-level   debug | info | warn | error
  --scheduler   Run the background renewal reminder job

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reminder scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server --db="./data/contracts.db"
  ./server --db=":memory:" --log-level=debug
  CONTRACTS_SERVER_PORT=3000 ./server

SEE ALSO:
  - config/config.go: Configuration keys and sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/warp/contract-engine/api"
	"github.com/warp/contract-engine/billing"
	"github.com/warp/contract-engine/config"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/logging"
	"github.com/warp/contract-engine/store/sqlite"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := config.NewViper()

	root := &cobra.Command{
		Use:           "server",
		Short:         "Contract valuation, billing and renewal engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(v, serve)
		},
	}

	flags := root.PersistentFlags()
	flags.Int("port", 8080, "HTTP server port")
	flags.String("db", "./data/contracts.db", "SQLite database path")
	flags.String("log-level", "info", "Log level")
	flags.Bool("scheduler", true, "Run the background renewal reminder job")
	_ = v.BindPFlag("server.port", flags.Lookup("port"))
	_ = v.BindPFlag("database.path", flags.Lookup("db"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("scheduler.enabled", flags.Lookup("scheduler"))

	root.AddCommand(&cobra.Command{
		Use:   "check-renewals",
		Short: "Record due renewal reminders once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(v, checkRenewals)
		},
	})
	return root
}

// app is the wired dependency graph shared by every command.
type app struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	store     *sqlite.Store
	handler   *api.Handler
	scheduler *api.RenewalReminderScheduler
}

func withApp(v *viper.Viper, run func(*app) error) error {
	cfg, err := config.Load(v)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer func() { _ = log.Sync() }()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Errorw("failed to initialize database", "path", cfg.Database.Path, "error", err)
		return err
	}
	defer store.Close()

	metrics := api.NewMetrics()
	handler := api.NewHandler(store, log, metrics)
	handler.DayCount = billing.DayCount(cfg.Billing.DayCount)
	handler.Factory.Currency = generic.Currency(cfg.Billing.Currency)

	scheduler := api.NewRenewalReminderScheduler(store, log, metrics)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.Interval

	return run(&app{cfg: cfg, log: log, store: store, handler: handler, scheduler: scheduler})
}

func serve(a *app) error {
	router := api.NewRouter(a.handler, api.RouterOptions{AllowedOrigins: a.cfg.CORS.AllowedOrigins})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	a.scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		a.log.Infow("server starting", "addr", server.Addr, "db", a.cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		a.scheduler.Stop()
		return errors.Wrap(err, "server failed")
	}

	a.log.Info("shutting down server")
	a.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}

	a.log.Info("server stopped")
	return nil
}

func checkRenewals(a *app) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result := a.scheduler.CheckAndRecord(ctx)
	a.log.Infow("renewal check finished",
		"checked", result.Checked,
		"due", result.Due,
		"recorded", result.Recorded,
		"failed", result.Failed,
	)
	if result.Failed > 0 {
		return errors.Newf("%d contracts failed", result.Failed)
	}
	return nil
}
