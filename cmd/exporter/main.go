package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockedby/tg-export/internal/collector"
	"github.com/blockedby/tg-export/internal/config"
	"github.com/blockedby/tg-export/internal/consumer"
	"github.com/blockedby/tg-export/internal/database"
	"github.com/blockedby/tg-export/internal/logger"
	"github.com/blockedby/tg-export/internal/migrator"
	"github.com/blockedby/tg-export/internal/nats"
	"github.com/blockedby/tg-export/internal/publisher"
	"github.com/blockedby/tg-export/internal/repository"
	"github.com/blockedby/tg-export/internal/telegram"
	"github.com/blockedby/tg-export/internal/web"
	"github.com/blockedby/tg-export/migrations"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting telegram export service")

	// 3. Setup context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 4. Telegram session storage
	sessionDB, err := telegram.OpenSessionDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open session database")
	}
	defer func() {
		if err := telegram.CloseSessionDB(sessionDB); err != nil {
			log.Warn().Err(err).Msg("failed to close session database")
		}
	}()
	tgManager := telegram.NewManager(cfg, sessionDB)
	if !cfg.HasTelegramCredentials() {
		log.Warn().Msg("TG_API_ID and TG_API_HASH are not set, runs will fail until configured")
	}

	connect := func(ctx context.Context) (collector.TelegramClient, error) {
		client, err := tgManager.Connect(ctx)
		if err != nil {
			// keep the interface nil on failure
			return nil, err
		}
		return client, nil
	}

	// 5. Optional collaborators
	var opts []collector.RunManagerOption

	if cfg.DatabaseURL != "" {
		m, err := migrator.NewWithFS(migrations.FS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load migrations")
		}
		if err := m.Up(ctx, cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}

		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		opts = append(opts, collector.WithReportStore(repository.NewReportsRepository(db.Pool, db.GORM)))
		log.Info().Msg("report archive enabled")
	}

	var nc *nats.Client
	if cfg.NatsURL != "" {
		nc, err = nats.New(ctx, cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			defer nc.Close()
			if err := nc.EnsureStream(ctx, nats.ExportsStream, nats.ExportsSubjects); err != nil {
				log.Warn().Err(err).Msg("failed to ensure exports stream")
			}
			opts = append(opts, collector.WithEventPublisher(publisher.NewNATSPublisher(nc)))
		}
	}

	// 6. WebSocket hub for live run progress
	hub := web.NewHub()
	go hub.Run()
	notifier := web.NewNotifier(hub)
	opts = append(opts, collector.WithObserver(notifier))

	// 7. Collector service and run manager
	svc := collector.NewService(log, collector.RetryPolicy{MaxAttempts: cfg.TGFloodRetries})
	runManager := collector.NewRunManager(svc, connect, opts...)

	if nc != nil {
		if err := consumer.NewConsumer(nc, runManager, log).Start(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to start export request consumer")
		}
	}

	// 8. HTTP server
	// QR login goes through the same manager that connects runs
	handler := collector.NewHandler(runManager, collector.WithAuth(tgManager, notifier))
	server := web.NewServer(&web.Config{Port: cfg.HTTPPort}, collector.NewRouter(handler), hub)

	log.Info().Int("port", cfg.HTTPPort).Msg("starting web server")
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	// 9. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down services...")

	runManager.Stop()
	tgManager.CancelQR()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown")
	}

	log.Info().Msg("shutdown complete")
}
