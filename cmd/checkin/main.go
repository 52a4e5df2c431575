// Command checkin runs the daily game check-in.
//
//	checkin [serve]          run the schedule and the ops HTTP API
//	checkin run-once         run every account once and print the summary
//	checkin import FILE      register guilds and accounts from YAML
//	checkin api-key [-rotate]
//	checkin version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pysugar/checkin-nexus/internal/config"
	"github.com/pysugar/checkin-nexus/internal/db"
	"github.com/pysugar/checkin-nexus/internal/importer"
	"github.com/pysugar/checkin-nexus/internal/scheduler"
	"github.com/pysugar/checkin-nexus/internal/server"
	"github.com/pysugar/checkin-nexus/internal/telemetry"
	"github.com/pysugar/checkin-nexus/internal/version"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	if err := run(cmd, args); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	if cmd == "version" {
		fmt.Println(version.String())
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "checkin-nexus", cfg.OTLPEndpoint)
	if err != nil {
		log.Printf("⚠️ Tracing disabled: %v", err)
	}
	defer shutdownTracing(context.Background())

	switch cmd {
	case "serve":
		return serve(ctx, cfg)
	case "run-once":
		return runOnce(ctx, cfg)
	case "import":
		return importFile(ctx, cfg, args)
	case "api-key":
		return apiKey(cfg, args)
	default:
		return fmt.Errorf("unknown command %q (want serve, run-once, import, api-key or version)", cmd)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	hour, minute, _ := cfg.ScheduleAt()
	daily, err := scheduler.NewDaily(ctx, a.runner, a.location, hour, minute)
	if err != nil {
		return err
	}
	daily.Start()
	defer daily.Shutdown()

	if next, err := daily.NextRun(); err == nil {
		log.Printf("⏰ Next check-in run at %s", next.In(a.location).Format(time.RFC3339))
	}
	if cfg.RunOnStart {
		if err := daily.RunNow(); err != nil {
			log.Printf("⚠️ Failed to trigger startup run: %v", err)
		}
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.NewRouter(server.Deps{
			DB:         a.db,
			Catalog:    a.catalog,
			Runner:     a.runner,
			Logs:       a.store,
			NextRun:    daily.NextRun,
			RunContext: ctx,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Check-in Nexus %s starting on http://%s", version.String(), cfg.Addr())
		log.Printf("🔌 Ops API: http://%s/api", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Printf("🔄 Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runOnce(ctx context.Context, cfg config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.runner.TryRun(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func importFile(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: checkin import FILE")
	}
	f, err := importer.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := importer.Apply(ctx, a.store, f)
	fmt.Printf("imported %d guilds, %d accounts, %d failed\n", res.Guilds, res.Accounts, res.Failed)
	return err
}

func apiKey(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("api-key", flag.ContinueOnError)
	rotate := fs.Bool("rotate", false, "replace the admin API key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := db.InitDB(cfg.DBDriver, cfg.DBDSN, cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if sqlDB, err := database.DB(); err == nil {
		defer sqlDB.Close()
	}

	if *rotate {
		fmt.Println(db.RegenerateAPIKey(database))
		return nil
	}
	fmt.Println(db.GetAPIKey(database))
	return nil
}
