package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/config"
	"github.com/STS-Engineer/llc-backend/internal/domain/deployment"
	"github.com/STS-Engineer/llc-backend/internal/domain/distribution"
	"github.com/STS-Engineer/llc-backend/internal/domain/llc"
	"github.com/STS-Engineer/llc-backend/internal/domain/token"
	"github.com/STS-Engineer/llc-backend/internal/domain/user"
	"github.com/STS-Engineer/llc-backend/internal/notify"
	"github.com/STS-Engineer/llc-backend/internal/render"
	"github.com/STS-Engineer/llc-backend/internal/sqlite"
	"github.com/STS-Engineer/llc-backend/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	llcStore := sqlite.NewLlcStore(db)
	unitStore := sqlite.NewUnitStore(db)
	tokenStore := sqlite.NewTokenStore(db)
	userStore := sqlite.NewUserStore(db)
	outboxStore := sqlite.NewOutboxStore(db)

	resolver := distribution.NewResolver(cfg.Plants.Distribution, cfg.Plants.Validators, cfg.Plants.Contacts)
	tokenSvc := token.NewService(tokenStore, logger)
	mails := notify.MailBuilder{BaseURL: cfg.Links.FrontendBaseURL}

	mailer := notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.FromName)
	dispatcher := notify.NewDispatcher(outboxStore, mailer, logger, 15*time.Second)

	renderer, err := render.NewReportRenderer()
	if err != nil {
		logger.Error("failed to build report renderer", "error", err)
		os.Exit(1)
	}
	docs, err := render.NewDiskStore(cfg.Storage.GeneratedDir)
	if err != nil {
		logger.Error("failed to prepare document store", "error", err)
		os.Exit(1)
	}

	llcSvc := llc.NewService(llc.ServiceConfig{
		Records:       llcStore,
		Units:         unitStore,
		Tokens:        tokenSvc,
		Resolver:      resolver,
		Outbox:        outboxStore,
		Waker:         dispatcher,
		Renderer:      renderer,
		Docs:          docs,
		Tx:            db,
		Mails:         mails,
		Logger:        logger,
		ReviewTTL:     cfg.Tokens.ReviewTTL,
		FinalApprover: cfg.Workflow.FinalApprover,
	})
	deploymentSvc := deployment.NewService(deployment.Config{
		Units:      unitStore,
		Records:    llcStore,
		Tokens:     tokenSvc,
		Outbox:     outboxStore,
		Waker:      dispatcher,
		Contacts:   resolver,
		Tx:         db,
		Mails:      mails,
		Logger:     logger,
		ReviewTTL:  cfg.Tokens.ReviewTTL,
		ReworkTTL:  cfg.Tokens.ReworkTTL,
		AdminEmail: cfg.Workflow.AdminEmail,
	})
	userSvc := user.NewService(userStore, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, resolver.ValidatorFor, []string{cfg.Workflow.AdminEmail}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	router := transport.NewServer(llcSvc, deploymentSvc, userSvc)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer, cancel)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func waitForShutdown(logger *slog.Logger, server *http.Server, cancel context.CancelFunc) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
