package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/iconidentify/audiograbba/internal/api"
	"github.com/iconidentify/audiograbba/internal/api/handler"
	"github.com/iconidentify/audiograbba/internal/config"
	"github.com/iconidentify/audiograbba/internal/conversation"
	"github.com/iconidentify/audiograbba/internal/domain"
	"github.com/iconidentify/audiograbba/internal/downloader"
	"github.com/iconidentify/audiograbba/internal/pipeline"
	"github.com/iconidentify/audiograbba/internal/repository"
	"github.com/iconidentify/audiograbba/internal/search"
	"github.com/iconidentify/audiograbba/internal/service"
	"github.com/iconidentify/audiograbba/internal/telegram"
	"github.com/iconidentify/audiograbba/internal/uploader"
	"github.com/iconidentify/audiograbba/internal/worker"
	"github.com/iconidentify/audiograbba/pkg/ytdlp"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("audiograbba %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logger := newLogger(*debug)
	slog.SetDefault(logger)

	logger.Info("starting audiograbba",
		"version", Version,
		"build_time", BuildTime,
	)

	if err := run(*configPath, logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tempDir := cfg.Storage.TempDir()
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}

	ytdlpClient, err := ytdlp.NewClient(cfg.Download.YTDLPPath)
	if err != nil {
		return fmt.Errorf("init yt-dlp: %w", err)
	}
	if v, err := ytdlpClient.Version(context.Background()); err == nil {
		logger.Info("yt-dlp available", "version", v)
	}

	activity, err := service.NewActivityLog(service.ActivityLogConfig{
		RingBufferSize: cfg.Events.BufferSize,
		SQLitePath:     cfg.Events.SQLitePath,
		RetentionDays:  cfg.Events.RetentionDays,
	}, logger.With("component", "activity"))
	if err != nil {
		return fmt.Errorf("init activity log: %w", err)
	}
	defer activity.Close()

	sessions := repository.NewInMemorySessionRepository()
	bot := telegram.NewClient(cfg.Telegram, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	logger.Info("telegram bot authenticated", "username", me.Username, "bot_id", me.ID)

	filter := search.NewFilter(search.NewYTDLPCatalog(ytdlpClient), cfg.Search.Origin, cfg.Search.Timeout, logger.With("component", "search"))
	acquirer := downloader.NewAudioAcquirer(ytdlpClient, cfg.Download, tempDir, logger.With("component", "downloader"))
	up := uploader.NewHTTPUploader(cfg.Upload, logger.With("component", "uploader"))

	orchestrator := pipeline.NewOrchestrator(
		sessions,
		filter,
		acquirer,
		up,
		bot,
		activity,
		pipeline.Options{
			MinDurationSeconds: cfg.Search.MinDurationSeconds(),
			MaxResults:         cfg.Search.MaxResults,
			Seed:               cfg.Pipeline.Seed,
		},
		logger.With("component", "pipeline"),
	)
	controller := conversation.NewController(sessions, orchestrator, bot, activity, cfg.Pipeline.MaxRepeatCount, logger.With("component", "conversation"))

	dispatcher := worker.NewDispatcher(worker.Config{
		QueueSize:   cfg.Worker.QueueSize,
		IdleTimeout: cfg.Worker.IdleTimeout,
	}, logger.With("component", "dispatcher"))

	var srv *http.Server
	if cfg.Server.Enabled {
		router := api.NewRouter(
			handler.NewHealthHandler(sessions, dispatcher, activity, tempDir),
			handler.NewEventHandler(activity, logger),
			cfg.Server.APIKey,
			logger,
		)
		srv = &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info("starting ops HTTP server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", "error", err)
				stop()
			}
		}()
	}

	go cleanupLoop(ctx, activity, logger)

	activity.EmitInfo(domain.EventCategorySystem, "main", "bot started", domain.EventMetadata{"version": Version})

	poller := telegram.NewPoller(bot, dispatcher, controller, cfg.Telegram.PollTimeout, logger.With("component", "poller"))
	if err := poller.Run(ctx); err != nil {
		logger.Error("poller stopped", "error", err)
	}

	logger.Info("shutting down")

	if err := dispatcher.Stop(cfg.Worker.ShutdownTimeout); err != nil {
		logger.Warn("session workers did not drain", "error", err)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func cleanupLoop(ctx context.Context, activity *service.ActivityLog, logger *slog.Logger) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := activity.CleanupOldEvents(ctx); err != nil {
				logger.Warn("event cleanup failed", "error", err)
			}
		}
	}
}
