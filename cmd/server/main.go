package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"workday/backend/internal/broadcast"
	"workday/backend/internal/config"
	"workday/backend/internal/db"
	"workday/backend/internal/handler"
	"workday/backend/internal/push"
	"workday/backend/internal/repository"
	"workday/backend/internal/router"
	"workday/backend/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		logger.Error("run migrations", "error", err)
		os.Exit(1)
	}

	userRepo := repository.NewUserRepository(database)
	workdayRepo := repository.NewWorkdayRepository(database)
	subscriberRepo := repository.NewSubscriberRepository(database)

	hub := broadcast.NewHub(logger)
	notifier := push.NewNotifier(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject, cfg.PushTimeout)
	if !notifier.Enabled() {
		logger.Warn("VAPID keys not configured, push delivery disabled")
	}

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	workdayService := service.NewWorkdayService(workdayRepo, subscriberRepo, hub, logger)
	notifierService := service.NewNotifierService(subscriberRepo, workdayService, notifier, logger, cfg.SweepInterval)

	authHandler := handler.NewAuthHandler(authService)
	workdayHandler := handler.NewWorkdayHandler(workdayService, hub, logger)
	notifierHandler := handler.NewNotifierHandler(notifierService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go notifierService.Run(ctx)

	engine := router.New(authService, authHandler, workdayHandler, notifierHandler, cfg.CORSOrigins)
	logger.Info("backend listening", "port", cfg.Port)
	if err := engine.Run(":" + cfg.Port); err != nil {
		logger.Error("run server", "error", err)
		os.Exit(1)
	}
}
