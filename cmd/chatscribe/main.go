// Command chatscribe runs the Discord conversation summarization server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumisage/chatscribe/internal/cache"
	"github.com/lumisage/chatscribe/internal/config"
	discordbot "github.com/lumisage/chatscribe/internal/discord"
	"github.com/lumisage/chatscribe/internal/health"
	"github.com/lumisage/chatscribe/internal/httpapi"
	"github.com/lumisage/chatscribe/internal/observe"
	"github.com/lumisage/chatscribe/internal/resilience"
	"github.com/lumisage/chatscribe/internal/schedule"
	"github.com/lumisage/chatscribe/internal/store"
	"github.com/lumisage/chatscribe/internal/summarize"
	"github.com/lumisage/chatscribe/pkg/claude"
)

// Cache sizing fallbacks for when the config leaves them unset.
const (
	defaultCacheEntries      = 1000
	defaultPermissionEntries = 500
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Configuration + hot reload ─────────────────────────────────────────────
	level := new(slog.LevelVar)

	// reload holds the pieces the watcher callback touches. The scheduler is
	// wired in after construction; until then schedule changes are skipped.
	var reload struct {
		mu    sync.Mutex
		sched *schedule.Scheduler
	}

	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			level.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		if diff.SchedulesChanged {
			reload.mu.Lock()
			if reload.sched != nil {
				reload.sched.Update(new.Schedules)
			}
			reload.mu.Unlock()
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "chatscribe: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "chatscribe: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("chatscribe starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"model", cfg.Claude.Model,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "chatscribe"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	// ── LLM client ────────────────────────────────────────────────────────────
	client, err := buildClient(cfg.Claude, logger)
	if err != nil {
		slog.Error("failed to create Claude client", "err", err)
		return 1
	}
	llm := resilience.NewGuardedLLM(client, resilience.CircuitBreakerConfig{Name: "anthropic"})

	// ── Caches ────────────────────────────────────────────────────────────────
	maxEntries := cfg.Cache.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	backend, err := cache.NewMemory(maxEntries)
	if err != nil {
		slog.Error("failed to create cache", "err", err)
		return 1
	}
	summaries := cache.NewSummaryCache(backend, cfg.Cache.TTL.Std())

	permSize := cfg.Cache.PermissionMaxSize
	if permSize <= 0 {
		permSize = defaultPermissionEntries
	}
	permCache, err := cache.NewPermissionCache(permSize, cfg.Cache.PermissionTTL.Std())
	if err != nil {
		slog.Error("failed to create permission cache", "err", err)
		return 1
	}

	// ── Summarization engine ──────────────────────────────────────────────────
	engineOpts := []summarize.Option{
		summarize.WithCache(summaries),
		summarize.WithMetrics(metrics),
		summarize.WithLogger(logger),
		summarize.WithDefaultModel(cfg.Claude.Model),
	}
	if cfg.Summaries.MaxPromptTokens > 0 {
		engineOpts = append(engineOpts, summarize.WithMaxPromptTokens(cfg.Summaries.MaxPromptTokens))
	}
	if cfg.Summaries.BatchConcurrency > 0 {
		engineOpts = append(engineOpts, summarize.WithBatchConcurrency(cfg.Summaries.BatchConcurrency))
	}
	engine := summarize.New(llm, engineOpts...)

	// ── History store (optional) ──────────────────────────────────────────────
	var history store.Store
	var pgStore *store.PostgresStore
	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pool.Close()

		pgStore = store.NewPostgres(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			slog.Error("failed to run store migrations", "err", err)
			return 1
		}
		history = pgStore
		slog.Info("summary history store connected")
	}

	// ── Health endpoints ──────────────────────────────────────────────────────
	checkers := []health.Checker{
		{Name: "claude", Check: llm.HealthCheck},
		{Name: "cache", Check: backend.HealthCheck, Optional: true},
	}
	if pgStore != nil {
		checkers = append(checkers, health.Checker{Name: "postgres", Check: pgStore.HealthCheck, Optional: true})
	}
	healthHandler := health.New(checkers...)

	// ── Discord bot (optional) ────────────────────────────────────────────────
	var bot *discordbot.Bot
	var fetcher *discordbot.Fetcher
	if cfg.Discord.Token != "" {
		perms := discordbot.NewPermissionChecker(permCache, cfg.Discord.AdminRoles)
		bot, err = discordbot.New(ctx, cfg.Discord, perms)
		if err != nil {
			slog.Error("failed to create Discord bot", "err", err)
			return 1
		}

		fetcher = discordbot.NewFetcher(bot.Session())
		commands := discordbot.NewCommands(engine, fetcher, perms, summaries, history, cfg.Summaries, logger)
		commands.Register(bot.Router())
		slog.Info("discord bot connected", "guilds", len(cfg.Discord.GuildIDs))
	}

	// ── Scheduled summaries ───────────────────────────────────────────────────
	var sched *schedule.Scheduler
	if len(cfg.Schedules) > 0 {
		if fetcher == nil {
			slog.Warn("schedules configured but no Discord token set, skipping scheduled summaries")
		} else {
			schedOpts := []schedule.Option{
				schedule.WithLogger(logger),
				schedule.WithPublisher(discordbot.NewPublisher(bot.Session())),
			}
			if history != nil {
				schedOpts = append(schedOpts, schedule.WithHistory(history))
			}
			sched = schedule.New(fetcher, engine, cfg.Summaries, schedOpts...)
			sched.Start(ctx, cfg.Schedules)
			defer sched.Stop()

			reload.mu.Lock()
			reload.sched = sched
			reload.mu.Unlock()
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────────────
	server := httpapi.New(cfg.Server, engine, healthHandler,
		httpapi.WithLogger(logger),
		httpapi.WithMetrics(metrics),
	)

	if bot != nil {
		go func() {
			if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("discord bot error", "err", err)
			}
		}()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := server.Run(ctx); err != nil {
		slog.Error("http server error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	if bot != nil {
		if err := bot.Close(); err != nil {
			slog.Warn("discord bot close error", "err", err)
		}
	}

	slog.Info("goodbye")
	return 0
}

// buildClient assembles the Claude client from its config section.
func buildClient(cfg config.ClaudeConfig, logger *slog.Logger) (*claude.Client, error) {
	opts := []claude.Option{claude.WithLogger(logger)}
	if cfg.BaseURL != "" {
		opts = append(opts, claude.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries != nil {
		opts = append(opts, claude.WithMaxRetries(*cfg.MaxRetries))
	}
	if d := cfg.RequestTimeout.Std(); d > 0 {
		opts = append(opts, claude.WithRequestTimeout(d))
	}
	if d := cfg.MinRequestInterval.Std(); d > 0 {
		opts = append(opts, claude.WithMinRequestInterval(d))
	}
	return claude.New(cfg.APIKey, opts...)
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
