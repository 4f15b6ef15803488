package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "attendance/api/swagger" // swagger docs
	"attendance/internal/app"
	"attendance/internal/config"
	"attendance/internal/database"
	"attendance/internal/i18n"
	"attendance/internal/logger"

	"github.com/sirupsen/logrus"
)

// @title           Attendance Bot API
// @version         1.0
// @description     Absence requests, approvals and employee onboarding for the Mattermost attendance bot.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Config failed: %v", err)
	}
	if err := logger.Init(logger.Options{Env: cfg.Env, Level: cfg.LogLevel, SentryDSN: cfg.SentryDSN}); err != nil {
		logrus.WithError(err).Warn("sentry init failed, continuing without it")
	}
	defer logger.Flush()

	if err := i18n.Init(cfg.Locale); err != nil {
		logrus.Fatalf("Locale init failed: %v", err)
	}

	db, err := database.NewConnection(cfg.Database.DSN())
	if err != nil {
		logrus.Fatalf("Database connection failed: %v", err)
	}
	logrus.Info("Connected to PostgreSQL successfully.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, db, nil)
	if err != nil {
		logrus.Fatalf("Startup failed: %v", err)
	}
	defer application.Close()

	go application.Hub.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Infof("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
}
