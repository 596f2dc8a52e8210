// Command contextmcp runs the ContextMCP server: a task-orchestration and
// hierarchical-context service exposed over the Model Context Protocol
// (spec.md §1). It communicates over stdio (default) or Streamable HTTP
// using JSON-RPC 2.0, and persists to an in-memory store or Postgres
// depending on configuration.
//
// Optional environment variables:
//
//	CONTEXTMCP_CONFIG      - path to a TOML config file
//	CONTEXTMCP_STORAGE_DSN - postgres DSN (only used when storage.driver=postgres)
//	CONTEXTMCP_LOG_LEVEL   - debug, info, warn, error (default: info)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/riverforge/contextmcp/internal/agentsvc"
	"github.com/riverforge/contextmcp/internal/bootstrap"
	"github.com/riverforge/contextmcp/internal/branchsvc"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/config"
	"github.com/riverforge/contextmcp/internal/content"
	"github.com/riverforge/contextmcp/internal/contextengine"
	"github.com/riverforge/contextmcp/internal/dispatcher"
	"github.com/riverforge/contextmcp/internal/maintenance"
	"github.com/riverforge/contextmcp/internal/mcp"
	"github.com/riverforge/contextmcp/internal/projectsvc"
	"github.com/riverforge/contextmcp/internal/repository"
	memrepo "github.com/riverforge/contextmcp/internal/repository/memory"
	pgrepo "github.com/riverforge/contextmcp/internal/repository/postgres"
	"github.com/riverforge/contextmcp/internal/scheduler"
	"github.com/riverforge/contextmcp/internal/subtasksvc"
	"github.com/riverforge/contextmcp/internal/tasksvc"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	// "info" is a diagnostic subcommand; everything else runs the server.
	if len(os.Args) > 1 && os.Args[1] == "info" {
		runInfo(os.Args[2:])
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "contextmcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONTEXTMCP_CONFIG"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.Log.Level)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	version := cfg.Server.Version
	if Version != "dev" {
		version = Version
	}

	logger.Info("starting contextmcp",
		"version", version,
		"storage_driver", cfg.Storage.Driver,
		"transport", cfg.Transport.Mode,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building repository store: %w", err)
	}
	defer closeStore()

	c := clock.System{}

	if err := bootstrap.EnsureGlobalContext(ctx, store, c); err != nil {
		return fmt.Errorf("bootstrapping global context: %w", err)
	}

	flags := bootstrap.FromConfig(cfg)

	engine := contextengine.New(store, c, cfg.Performance.Cache.Enabled,
		time.Duration(cfg.Performance.Cache.TTLSeconds)*time.Second)
	tasks := tasksvc.New(store, c, engine)
	if flags.RequireSummaryLength {
		tasks.SetMinSummaryLength(flags.MinSummaryLength)
	}
	subtasks := subtasksvc.New(store, c)
	projects := projectsvc.New(store, c)
	branches := branchsvc.New(store, c)
	agents := agentsvc.New(store, c)

	deps := dispatcher.NewDeps(tasks, subtasks, engine, projects, branches, agents, c, flags)

	registry := mcp.NewRegistry()
	registry.Register(dispatcher.NewManageTask(deps))
	registry.Register(dispatcher.NewManageSubtask(deps))
	registry.Register(dispatcher.NewManageContext(deps))
	registry.Register(dispatcher.NewManageProject(deps))
	registry.Register(dispatcher.NewManageGitBranch(deps))
	registry.Register(dispatcher.NewManageAgent(deps))

	registry.RegisterPrompt(&content.GuidePrompt{})
	registry.RegisterPrompt(&content.WorkflowPrompt{})

	registry.RegisterResource(&content.EntityModelResource{})
	registry.RegisterResource(&content.GuardrailsResource{})
	registry.RegisterResource(&content.ToolReferenceResource{})

	server := mcp.NewServer(registry, mcp.ServerInfo{
		Name:    cfg.Server.Name,
		Version: version,
	}, logger)

	if cfg.Maintenance.Enabled {
		sched := scheduler.NewScheduler(logger)
		sched.AddJob(maintenance.New(store, logger), time.Duration(cfg.Maintenance.IntervalHours)*time.Hour)
		sched.Start(ctx)
		defer sched.Stop()
	}

	if strings.EqualFold(cfg.Transport.Mode, "http") {
		return runHTTP(ctx, server, cfg, logger)
	}
	return server.Run(ctx)
}

// buildStore constructs the repository.Store for the configured driver and
// returns a close function that releases any underlying connection.
func buildStore(ctx context.Context, cfg *config.Config) (*repository.Store, func(), error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "", "memory":
		return memrepo.NewRepositoryStore(clock.System{}), func() {}, nil
	case "postgres":
		if cfg.Storage.DSN == "" {
			return nil, nil, fmt.Errorf("storage.dsn is required when storage.driver=postgres")
		}
		db, err := pgrepo.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pgrepo.NewRepositoryStore(db), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage.driver %q (want memory or postgres)", cfg.Storage.Driver)
	}
}

func runHTTP(ctx context.Context, server *mcp.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := mcp.NewHTTPServer(server, cfg.Transport.CORSOrigins, logger)
	addr := cfg.Transport.Host + ":" + cfg.Transport.Port

	srv := &http.Server{
		Addr:    addr,
		Handler: httpServer.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("contextmcp HTTP server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
