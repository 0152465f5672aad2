// Package main is the entry point for the snipr URL-shortening service.
package main

import (
	"context"
	lg "log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"snipr/internal/analytics"
	"snipr/internal/auth"
	"snipr/internal/config"
	"snipr/internal/database"
	httpHandler "snipr/internal/handler/http"
	"snipr/internal/quota"
	"snipr/internal/repository/postgres"
	"snipr/internal/service"
	"snipr/pkg/logger"
	"snipr/pkg/useragent"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	log.Info("starting snipr", zap.String("env", cfg.Env))

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, log); err != nil {
			log.Fatal("failed to run database migrations", zap.Error(err))
		}
	} else {
		log.Info("skipping database migrations (auto_migrate: false)")
	}

	if cfg.Database.SeedData {
		if err := database.SeedBootstrapKey(db, service.BootstrapKey, log); err != nil {
			log.Fatal("failed to seed bootstrap key", zap.Error(err))
		}
	}

	parser, err := useragent.NewParser(cfg.UserAgent.RegexesPath, log)
	if err != nil {
		log.Fatal("failed to initialize User-Agent parser", zap.Error(err))
	}

	storage := postgres.New(db, log)

	allocator := service.NewCodeAllocator(storage, cfg.Shortener.CodeLength)
	ledger := quota.NewLedger(storage)
	passwords := auth.NewPasswordService()
	linkService := service.NewLinkService(storage, allocator, ledger, passwords, log)
	clickService := service.NewClickService(storage, parser, log)
	keyService := service.NewAPIKeyService(storage, log)

	var tokenService *auth.AccessTokenService
	if cfg.AccessToken.Secret != "" {
		tokenService = auth.NewAccessTokenService(&auth.AccessTokenConfig{
			Secret: []byte(cfg.AccessToken.Secret),
			TTL:    cfg.AccessToken.TTL,
			Issuer: "snipr",
		})
	} else {
		log.Warn("access token secret not configured, password-protected links require the password on every visit")
	}

	processor := analytics.NewProcessor(clickService, log, analytics.Config{
		WorkerCount:     cfg.Analytics.WorkerCount,
		BufferSize:      cfg.Analytics.BufferSize,
		RetryAttempts:   cfg.Analytics.RetryAttempts,
		RetryDelay:      cfg.Analytics.RetryDelay,
		ShutdownTimeout: cfg.Analytics.ShutdownTimeout,
	})
	if err := processor.Start(); err != nil {
		log.Fatal("failed to start analytics processor", zap.Error(err))
	}

	mw := auth.NewMiddleware(storage, cfg.Admin.Token, log)
	server := httpHandler.NewServer(
		httpHandler.ServerConfig{
			Port:           cfg.HTTPServer.Port,
			ReadTimeout:    cfg.HTTPServer.ReadTimeout,
			WriteTimeout:   cfg.HTTPServer.WriteTimeout,
			IdleTimeout:    cfg.HTTPServer.IdleTimeout,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		},
		mw,
		httpHandler.NewLinksHandler(linkService, clickService, cfg.Shortener.BaseURL, log),
		httpHandler.NewRedirectHandler(linkService, processor, tokenService, log),
		httpHandler.NewAdminHandler(keyService, linkService, log),
		httpHandler.NewHealthHandler(func() error { return database.HealthCheck(db) }, processor.Stats, log),
		log,
	)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down snipr...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown http server", zap.Error(err))
	}

	if err := processor.Stop(); err != nil {
		log.Error("failed to stop analytics processor", zap.Error(err))
	}

	log.Info("snipr stopped")
}
