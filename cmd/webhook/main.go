package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ivanoskov/custody_admin/internal/app"
	"github.com/ivanoskov/custody_admin/internal/config"
	"github.com/ivanoskov/custody_admin/internal/logger"
)

// Режим webhook: Telegram сам присылает обновления на WEBHOOK_PATH.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	if err := cfg.ValidateWebhook(); err != nil {
		panic(err)
	}
	log, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatal("failed to connect to telegram", zap.Error(err))
	}

	if cfg.WebhookURL != "" {
		if err := registerWebhook(api, cfg); err != nil {
			log.Fatal("failed to register webhook", zap.Error(err))
		}
		log.Info("webhook registered", zap.String("url", cfg.WebhookURL))
	}

	a, err := app.New(ctx, cfg, log, api)
	if err != nil {
		log.Fatal("failed to start", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: a.Router(cfg.WebhookPath, cfg.WebhookSecret)}
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("webhook", cfg.WebhookPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}

// registerWebhook вызывает setWebhook напрямую: WebhookConfig библиотеки
// не умеет передавать secret_token.
func registerWebhook(api *tgbotapi.BotAPI, cfg *config.Config) error {
	_, err := api.MakeRequest("setWebhook", tgbotapi.Params{
		"url":          cfg.WebhookURL,
		"secret_token": cfg.WebhookSecret,
	})
	if err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	return nil
}
