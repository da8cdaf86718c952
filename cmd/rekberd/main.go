package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	apiPkg "github.com/rekberhub/rekberd/internal/api"
	"github.com/rekberhub/rekberd/internal/archive"
	"github.com/rekberhub/rekberd/internal/config"
	"github.com/rekberhub/rekberd/internal/discord"
	"github.com/rekberhub/rekberd/internal/guard"
	"github.com/rekberhub/rekberd/internal/logbuf"
	"github.com/rekberhub/rekberd/internal/slowmode"
	"github.com/rekberhub/rekberd/internal/ticket"
)

func main() {
	// A missing .env is fine; the environment may be set directly.
	godotenv.Load()

	configPath := flag.String("config", "", "Path to config JSON file")
	postPanel := flag.Bool("post-panel", false, "Post the open-ticket panel and exit")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	// Load config (2 modes: file, env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("rekberd starting", "guild", cfg.Discord.GuildID)

	// 1. Durable archive store
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	dbPath := filepath.Join(cfg.DataDir, "archive.db")
	archStore, err := archive.NewStore(dbPath)
	if err != nil {
		logger.Error("failed to open archive store", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer archStore.Close()

	// 2. Discord adapter
	bot, err := discord.New(discord.Config{
		Token:            cfg.Discord.Token,
		GuildID:          cfg.Discord.GuildID,
		TicketCategoryID: cfg.Discord.TicketCategoryID,
		PanelChannelID:   cfg.Discord.PanelChannelID,
		ArchiveChannelID: cfg.Archive.ChannelID,
		PrivilegedRoleID: cfg.Discord.PrivilegedRoleID,
		SlowmodeChannels: cfg.Slowmode.Channels,
	}, logger.With("component", "discord"))
	if err != nil {
		logger.Error("failed to init discord adapter", "error", err)
		os.Exit(1)
	}

	// 3. Ticket lifecycle and archival sink
	store := ticket.NewStore()
	sink := archive.NewSink(archStore, bot,
		time.Duration(cfg.Archive.GraceSeconds)*time.Second,
		logger.With("component", "archive"))
	svc := ticket.NewService(store, bot, sink, logger.With("component", "ticket"))
	sink.OnFinalize = svc.Finalize
	defer sink.Stop()

	gate := slowmode.New(
		time.Duration(cfg.Slowmode.NormalSeconds)*time.Second,
		time.Duration(cfg.Slowmode.PrivilegedSeconds)*time.Second,
	)
	bot.Attach(svc, gate)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Start the gateway
	go safeGo(logger, "discord", func() { bot.Start(ctx) })
	go safeGo(logger, "slowmode-sweep", func() { gate.Run(ctx, time.Minute) })

	if *postPanel {
		// Give the gateway a moment to come up before posting.
		time.Sleep(3 * time.Second)
		if err := bot.PostPanel(ctx); err != nil {
			logger.Error("failed to post panel", "error", err)
			os.Exit(1)
		}
		return
	}

	// 5. Anti-scam warning repeater
	if cfg.Guard.WarningChannelID != "" {
		rep, err := guard.NewRepeater(bot,
			cfg.Guard.WarningChannelID,
			cfg.Guard.WarningMessage,
			cfg.Guard.WarningEvery,
			logger.With("component", "guard"))
		if err != nil {
			logger.Error("failed to init warning repeater", "error", err)
			os.Exit(1)
		}
		go safeGo(logger, "warning-repeater", func() { rep.Start(ctx) })
	}

	// 6. Start ops API server
	apiSvc := &botServiceAdapter{tickets: svc, archive: archStore}
	apiSrv := apiPkg.NewServer(apiSvc, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), logBuf)

	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	// 7. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	logger.Info("rekberd stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}

// botServiceAdapter implements api.BotService over the live registry and
// the archive store.
type botServiceAdapter struct {
	tickets *ticket.Service
	archive *archive.Store
}

// ListTickets hands out snapshot copies; the lifecycle keeps mutating
// the live tickets while the API encodes these.
func (b *botServiceAdapter) ListTickets() []*ticket.Ticket {
	return b.tickets.Snapshot()
}

func (b *botServiceAdapter) ListArchive(disposition string, limit int) ([]*archive.Record, error) {
	return b.archive.List(disposition, limit)
}

func (b *botServiceAdapter) ArchiveByTicket(ticketID uint64) (*archive.Record, error) {
	return b.archive.ByTicket(ticketID)
}
