// Package main запускает HTTP-сервер формы заявок EORIMAG.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/eorimag/internal/catalog"
	"github.com/mmeshcher/eorimag/internal/config"
	"github.com/mmeshcher/eorimag/internal/handler"
	"github.com/mmeshcher/eorimag/internal/notify"
	"github.com/mmeshcher/eorimag/internal/payment"
	"github.com/mmeshcher/eorimag/internal/repository"
	"github.com/mmeshcher/eorimag/internal/service"
	"github.com/mmeshcher/eorimag/internal/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		sugar.Warnw("load .env file", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	entries := catalog.Default()
	if cfg.CatalogFile != "" {
		entries, err = catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			sugar.Fatalw("catalog error", "error", err.Error())
		}
	}
	cat := catalog.New(entries, cfg.StripePrices)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		sugar.Fatalw("upload storage initialization error", "error", err.Error())
	}

	orderLog, err := repository.NewFileLog(cfg.DataDir)
	if err != nil {
		sugar.Fatalw("order log initialization error", "error", err.Error())
	}

	var ledger service.Ledger
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresLedger(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		defer pg.Close()
		ledger = pg
	}

	if cfg.StripeSecretKey == "" {
		sugar.Warn("STRIPE_SECRET_KEY is not set, checkout sessions will fail")
	}
	if len(cfg.MailTo) == 0 {
		sugar.Warn("MAIL_TO is not set, notifications will not be sent")
	}

	notifier := notify.NewClient(notify.Config{
		APIKey:  cfg.ResendAPIKey,
		BaseURL: cfg.ResendAPIURL,
		From:    cfg.MailFrom,
		To:      cfg.MailTo,
		CC:      cfg.MailCC,
	}, logger)

	gateway := payment.NewStripeGateway(payment.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.PublicBaseURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     cfg.PublicBaseURL + "/cancel",
	}, cat, logger)

	svc := service.NewService(store, orderLog, ledger, notifier, gateway, cat, service.Options{
		SendEmailOnSubmit: cfg.SendEmailOnSubmit,
		SendEmailOnPaid:   cfg.SendEmailOnPaid,
		ReplyToApplicant:  cfg.MailReplyToApplicant,
	}, logger)

	h := handler.NewHandler(svc, gateway, cat, logger, cfg.MaxUploadMB<<20)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting eorimag server", "addr", cfg.RunAddress, "base_url", cfg.PublicBaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		drainCtx, cancelDrain := context.WithTimeout(context.Background(), time.Minute)
		defer cancelDrain()

		if err := h.Wait(drainCtx); err != nil {
			sugar.Warnw("pending payment confirmations were not finished", "error", err.Error())
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.Store, error) {
	switch cfg.UploadBackend {
	case "", "disk":
		return storage.NewDiskStore(cfg.UploadDir)
	case "minio":
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return storage.NewMinIOStore(initCtx, cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey,
			cfg.MinIOBucket, cfg.MinIOUseSSL, logger)
	}
	return nil, fmt.Errorf("unknown upload backend %q", cfg.UploadBackend)
}
