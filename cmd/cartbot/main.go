package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CartBot/internal/api"
	"github.com/Kerhoff/CartBot/internal/assistant"
	"github.com/Kerhoff/CartBot/internal/auth"
	"github.com/Kerhoff/CartBot/internal/config"
	"github.com/Kerhoff/CartBot/internal/handlers"
	"github.com/Kerhoff/CartBot/internal/metrics"
	"github.com/Kerhoff/CartBot/internal/repository"
	"github.com/Kerhoff/CartBot/internal/repository/memory"
	"github.com/Kerhoff/CartBot/internal/repository/postgres"
	"github.com/Kerhoff/CartBot/internal/service"
	"github.com/Kerhoff/CartBot/internal/telegram"
	"github.com/Kerhoff/CartBot/pkg/logger"
)

const (
	tokenDuration   = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel, cfg.LogFormat)
	l.Info("Starting CartBot...")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, l)
	if err != nil {
		l.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	m := metrics.NewDefault()

	var model assistant.Model
	if cfg.OpenAIAPIKey != "" {
		model = assistant.NewOpenAIModel(cfg.OpenAIAPIKey, cfg.OpenAIModel, l)
		l.WithField("model", cfg.OpenAIModel).Info("Assistant enabled")
	} else {
		l.Warn("OPENAI_API_KEY is not set, the assistant is disabled")
	}

	// Service layer
	svc := service.New(store, l, service.Config{
		Model:                   model,
		Metrics:                 m,
		InviteCodeMaxAttempts:   cfg.InviteCodeMaxAttempts,
		AssistantHistoryLimit:   cfg.AssistantHistoryLimit,
		AssistantAllowAnonymous: cfg.AssistantAllowAnonymous,
		AssistantTimeout:        cfg.AssistantTimeout,
	})

	var servers []*http.Server

	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	servers = append(servers, metricsServer)

	if cfg.JWTSecret != "" {
		apiServer := api.NewServer(svc, auth.NewJWTManager(cfg.JWTSecret, tokenDuration), m, l)
		servers = append(servers, &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		})
	} else {
		l.Warn("JWT_SECRET is not set, the HTTP API is disabled")
	}

	for _, srv := range servers {
		go func(srv *http.Server) {
			l.Infof("HTTP server listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Errorf("HTTP server error: %v", err)
				stop()
			}
		}(srv)
	}

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			l.Fatalf("Failed to create Telegram bot: %v", err)
		}
		registerCommands(bot, svc, l)

		// Start Telegram bot polling
		go func() {
			if err := bot.Start(ctx); err != nil {
				l.Errorf("Bot error: %v", err)
				stop()
			}
		}()
	} else {
		l.Warn("TELEGRAM_TOKEN is not set, the bot is disabled")
	}

	l.Info("CartBot started successfully")

	<-ctx.Done()
	l.Info("Received shutdown signal...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Errorf("Failed to shut down HTTP server %s: %v", srv.Addr, err)
		}
	}

	l.Info("CartBot stopped")
}

func openStore(ctx context.Context, cfg *config.Config, l *logrus.Logger) (repository.Store, error) {
	if cfg.UsesMemoryStore() {
		l.Warn("Using the in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	}

	db, err := config.NewDatabase(ctx, cfg.DatabaseURL, l)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := db.Migrate(cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}

	return postgres.NewStore(db.DB), nil
}

func registerCommands(bot *telegram.Bot, svc *service.Service, l *logrus.Logger) {
	sessions := handlers.NewSessions()

	bot.RegisterCommand("start", "Get started", handlers.NewStartHandler(svc, sessions, l))
	bot.RegisterCommand("help", "Show all commands", handlers.NewHelpHandler(l))

	// Shopping list
	bot.RegisterCommand("list", "Show the active list", handlers.NewListHandler(svc, sessions, l))
	bot.RegisterCommand("buy", "Add an item: /buy milk x2", handlers.NewBuyHandler(svc, sessions, l))
	bot.RegisterCommand("done", "Check an item off", handlers.NewDoneHandler(svc, sessions, l))
	bot.RegisterCommand("remove", "Remove an item", handlers.NewRemoveHandler(svc, sessions, l))
	bot.RegisterCommand("clear", "Remove checked items", handlers.NewClearHandler(svc, sessions, l))
	bot.RegisterCommand("ask", "Ask the assistant to edit the list", handlers.NewAskHandler(svc, sessions, l))

	// Groups
	bot.RegisterCommand("groups", "Show your lists", handlers.NewGroupsHandler(svc, sessions, l))
	bot.RegisterCommand("use", "Switch the active list", handlers.NewUseHandler(svc, sessions, l))
	bot.RegisterCommand("newgroup", "Create a shared list", handlers.NewNewGroupHandler(svc, sessions, l))
	bot.RegisterCommand("invite", "Show the invite code", handlers.NewInviteHandler(svc, sessions, l))
	bot.RegisterCommand("join", "Join a shared list", handlers.NewJoinHandler(svc, sessions, l))
	bot.RegisterCommand("leave", "Leave the active shared list", handlers.NewLeaveHandler(svc, sessions, l))
}
