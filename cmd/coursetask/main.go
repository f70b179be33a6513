package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hsakai/coursetask/internal/canvas"
	"github.com/hsakai/coursetask/internal/config"
	"github.com/hsakai/coursetask/internal/daemon"
	"github.com/hsakai/coursetask/internal/events"
	"github.com/hsakai/coursetask/internal/model"
	"github.com/hsakai/coursetask/internal/store"
	"github.com/hsakai/coursetask/internal/syncer"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sync":
		runSyncCmd(os.Args[2:])
	case "daemon":
		runDaemonCmd(os.Args[2:])
	case "courses":
		runCoursesCmd(os.Args[2:])
	case "version":
		fmt.Printf("coursetask %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`coursetask - sync course assignments into the local task store

usage: coursetask <command> [options]

commands:
  sync      run one reconciliation pass over all dashboard courses
  daemon    run sync periodically, reloading config on change
  courses   list the courses visible on the dashboard
  version   print version
  help      show this help`)
}

func runSyncCmd(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	jsonOut := fs.Bool("json", false, "print the run summary as JSON")
	fs.Parse(args)

	cfg, logger := mustSetup(*configPath)

	summary, err := runSync(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Printf("run %s: %d courses, %d created, %d updated, %d unchanged, %d failed\n",
		summary.RunID, summary.Courses, summary.Created, summary.Updated,
		summary.Unchanged, len(summary.Failures))
	for _, f := range summary.Failures {
		fmt.Printf("  failed: %s (%d): %s\n", f.Project, f.CourseID, f.Message)
	}
}

func runDaemonCmd(args []string) {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	fs.Parse(args)

	cfg, logger := mustSetup(*configPath)

	syncFn := func(ctx context.Context, cfg model.Config) error {
		_, err := runSync(ctx, cfg, logger)
		return err
	}
	d := daemon.New(*configPath, cfg, syncFn, logger)
	if err := d.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "daemon: %v\n", err)
		os.Exit(1)
	}
}

func runCoursesCmd(args []string) {
	fs := flag.NewFlagSet("courses", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	fs.Parse(args)

	cfg, logger := mustSetup(*configPath)

	client := newClient(cfg, logger)
	courses, err := client.ListCourses(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "list courses: %v\n", err)
		os.Exit(1)
	}
	for _, c := range courses {
		fmt.Printf("%d\t%s\n", c.ID, c.Name)
	}
}

// runSync builds the full pipeline from cfg and runs one pass. The daemon
// calls this per tick so config reloads take effect.
func runSync(ctx context.Context, cfg model.Config, logger *logrus.Logger) (*syncer.Summary, error) {
	norm, err := syncer.NewNormalizer(cfg.Sync.Timezone, cfg.Sync.WaitOffsetDays, logger)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Sync.Timezone, err)
	}
	st, err := store.NewYAMLStore(cfg.Store.Dir)
	if err != nil {
		return nil, err
	}

	client := newClient(cfg, logger)
	rec := syncer.NewReconciler(st, norm, model.Priority(cfg.Sync.Priority), logger)
	orc := syncer.NewOrchestrator(client, rec, cfg.Sync.PoolWidth, logger)

	runID := uuid.NewString()
	orc.SetRunID(runID)

	bus := events.NewBus(256)
	defer bus.Close()
	orc.SetEventBus(bus)

	auditPath := filepath.Join(cfg.Store.Dir, "logs", "audit.jsonl")
	audit, err := events.NewAuditLogger(auditPath, 0)
	if err != nil {
		logger.WithError(err).Warn("audit log unavailable, continuing without it")
	} else {
		defer audit.Close()
		sub := audit.Subscriber(runID)
		for _, et := range []events.EventType{
			events.EventTaskCreated,
			events.EventTaskUpdated,
			events.EventCourseFailed,
			events.EventSyncCompleted,
		} {
			bus.Subscribe(et, sub)
		}
	}

	summary, err := orc.Run(ctx)
	if err != nil {
		return nil, err
	}
	// Give async audit delivery a moment before the deferred closes run.
	time.Sleep(50 * time.Millisecond)
	return summary, nil
}

func newClient(cfg model.Config, logger *logrus.Logger) *canvas.Client {
	timeout := time.Duration(cfg.Canvas.TimeoutSec) * time.Second
	return canvas.NewClient(cfg.Canvas.BaseURL, cfg.Canvas.Token, timeout, logger)
}

func mustSetup(configPath string) (model.Config, *logrus.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ValidateNetwork(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	return cfg, newLogger(cfg.Logging)
}

func newLogger(cfg model.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}
