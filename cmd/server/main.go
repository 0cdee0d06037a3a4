package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chemtrack-backend/internal/activity"
	"chemtrack-backend/internal/auth"
	"chemtrack-backend/internal/config"
	"chemtrack-backend/internal/database"
	"chemtrack-backend/internal/ledger"
	"chemtrack-backend/internal/logger"
	"chemtrack-backend/internal/notify"
	"chemtrack-backend/internal/reporting"
	"chemtrack-backend/internal/scheduler"
	"chemtrack-backend/internal/server"
	"chemtrack-backend/internal/users"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envFile := flag.String("env", "", "path to an env file (defaults to ./.env when present)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		// No logger yet.
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(logger.New(cfg.Env))
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if !cfg.IsProduction() {
		for _, w := range cfg.Warnings() {
			log.Warn(w)
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, logger.Named(log, "db"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailer := newMailer(cfg, log)

	var suppressor notify.Suppressor
	if cfg.LowStock.Cooldown > 0 && cfg.LowStock.RedisURL != "" {
		rs, err := notify.NewRedisSuppressorFromURL(ctx, cfg.LowStock.RedisURL)
		if err != nil {
			// The monitor falls back to process memory.
			log.Warn("redis unavailable for low stock cooldown", zap.Error(err))
		} else {
			defer func() { _ = rs.Close() }()
			suppressor = rs
		}
	}

	monitor := notify.NewMonitor(db, mailer, suppressor, notify.Config{
		From:      cfg.Mail.From,
		Recipient: cfg.Mail.Recipient,
		Cooldown:  cfg.LowStock.Cooldown,
	}, logger.Named(log, "lowstock"))

	sched := scheduler.New(cfg.LowStock.CronSchedule, loc, monitor, logger.Named(log, "scheduler"))
	if err := sched.Start(); err != nil {
		return err
	}

	app := server.New(server.Deps{
		DB:          db,
		Location:    loc,
		Logger:      log,
		CORSOrigins: cfg.CORSOrigins,
		JWTSecret:   cfg.JWTSecret,
		Auth:        auth.NewService(db, cfg.JWTSecret, cfg.JWTTTL, logger.Named(log, "auth")),
		Ledger:      ledger.NewService(db, monitor, logger.Named(log, "ledger")),
		Reporting:   reporting.NewService(db, loc, logger.Named(log, "reporting")),
		Monitor:     monitor,
		Users:       users.NewService(db, logger.Named(log, "users")),
		Activity:    activity.NewService(db, logger.Named(log, "activity")),
		Recorder:    activity.NewRecorder(db, logger.Named(log, "activity")),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening",
			zap.String("port", cfg.HTTPPort),
			zap.String("env", cfg.Env),
			zap.String("timezone", loc.String()),
			zap.Time("next_low_stock_sweep", sched.Next()))
		return app.Listen(":" + cfg.HTTPPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := app.ShutdownWithContext(shutdownCtx)
		sched.Stop(shutdownCtx)
		monitor.Close()
		return err
	})

	err = g.Wait()
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		err = errors.Join(err, sqlDB.Close())
	}
	return err
}

func newMailer(cfg *config.Config, log *zap.Logger) notify.Mailer {
	switch cfg.Mail.Provider {
	case "smtp":
		log.Info("low stock alerts via smtp", zap.String("host", cfg.Mail.SMTPHost), zap.Int("port", cfg.Mail.SMTPPort))
		return notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUser,
			Password: cfg.Mail.SMTPPass,
		})
	case "sendgrid":
		log.Info("low stock alerts via sendgrid")
		return notify.NewSendGridMailer(notify.SendGridConfig{
			APIKey:  cfg.Mail.SendGridAPIKey,
			BaseURL: cfg.Mail.SendGridBaseURL,
		})
	default:
		return nil
	}
}
