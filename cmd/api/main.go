package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"panacea/internal/adapters/auth/jwtauth"
	"panacea/internal/adapters/notify"
	pg "panacea/internal/adapters/storage/postgres"
	"panacea/internal/config"
	"panacea/internal/domain/dosetime"
	"panacea/internal/domain/reminders"
	"panacea/internal/domain/subscriptions"
	"panacea/internal/platform/httpclient"
	"panacea/internal/platform/logger"
	"panacea/internal/platform/metrics"
	"panacea/internal/ports/auth"
	"panacea/internal/router"

	"github.com/joho/godotenv"
)

// @title Panacea API
// @version 1.0
// @description Registro de medicamentos, agenda diaria de tomas y recordatorios.
// @BasePath /
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "panacea: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env es opcional: en producción las variables vienen del entorno.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.Log.App,
	})
	if zl, ok := log.(*logger.ZapLogger); ok {
		defer func() { _ = zl.Sync() }()
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clock := dosetime.NewClock(loc)
	m := metrics.New()

	var db *sql.DB
	if cfg.DBDSN != "" {
		db, err = pg.Open(cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = pg.Migrate(ctx, db)
		cancel()
		if err != nil {
			return err
		}
		log.Info("using postgres storage", nil)
	} else {
		log.Warn("DB_DSN not set, using in-memory storage", nil)
	}

	var verifier auth.AuthVerifier // nil = modo dev (X-Debug-User-ID)
	if cfg.JWTSecret != "" {
		verifier = jwtauth.NewVerifier(cfg.JWTSecret)
	} else {
		log.Warn("JWT_SECRET not set, running in dev auth mode", nil)
	}

	app := router.Build(router.Options{
		AuthVerifier:       verifier,
		DB:                 db,
		Logger:             log,
		Metrics:            m,
		Clock:              clock,
		StockDecrementOnce: cfg.Reminders.StockDecrementOnce,
		RateLimitRPS:       cfg.RateLimit.RPS,
		RateLimitBurst:     cfg.RateLimit.Burst,
	})

	dispatcher := notify.NewDispatcher(app.Subscriptions, log)
	dispatcher.Register(subscriptions.ChannelWebhook, notify.NewWebhookSender(
		httpclient.New(httpclient.Options{Timeout: cfg.WebhookTimeout, Name: "webhook"}),
		cfg.Log.App,
	))
	if cfg.TelegramToken != "" {
		bot, err := notify.NewTelegramBot(cfg.TelegramToken)
		if err != nil {
			// Sin telegram el resto de los canales sigue funcionando.
			log.Error("telegram disabled", map[string]any{"error": err.Error()})
		} else {
			dispatcher.Register(subscriptions.ChannelTelegram, notify.NewTelegramSender(bot))
		}
	}

	sched, err := reminders.NewScheduler(
		reminders.NewReminderSweep(app.Medications, app.Doses, dispatcher, reminders.ReminderOptions{
			Clock:       clock,
			Logger:      log,
			Metrics:     m,
			Concurrency: cfg.Reminders.Concurrency,
		}),
		reminders.NewMissedDoseSweep(app.Doses, reminders.MissedOptions{
			Clock:   clock,
			Logger:  log,
			Metrics: m,
		}),
		reminders.SchedulerOptions{
			ReminderSchedule:   cfg.Reminders.ReminderSchedule,
			MissedDoseSchedule: cfg.Reminders.MissedDoseSchedule,
			Location:           loc,
			Logger:             log,
		},
	)
	if err != nil {
		return err
	}
	sched.Start()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      app.Handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr, "timezone": loc.String()})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		_ = sched.Shutdown()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", map[string]any{"error": err.Error()})
	}
	if err := sched.Shutdown(); err != nil {
		log.Error("scheduler shutdown", map[string]any{"error": err.Error()})
	}
	return nil
}
