package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lookbook-studio/internal/config"
	"lookbook-studio/internal/gemini"
	"lookbook-studio/internal/handlers"
	"lookbook-studio/internal/httpclient"
	"lookbook-studio/internal/logging"
	"lookbook-studio/internal/lookbook"
	"lookbook-studio/internal/session"
	"lookbook-studio/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout(),
		Logger:     logger,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	analyzer := lookbook.NewGeminiAnalyzer(gem, cfg.AnalysisModel)
	stylist := lookbook.NewGeminiStylist(gem, cfg.ImageModel, cfg.AspectRatio)

	sessions := session.NewStore[int64](session.Options{
		TTL: cfg.SessionTTL(),
		New: func() *lookbook.Session {
			return lookbook.NewSession(lookbook.Options{
				Analyzer:   analyzer,
				Stylist:    stylist,
				Logger:     logger,
				Parallel:   cfg.ParallelVariations,
				RunTimeout: cfg.RequestTimeout(),
			})
		},
	})

	handler := handlers.New(handlers.Options{
		Telegram:         tg,
		Sessions:         sessions,
		Logger:           logger,
		DownloadInterval: cfg.DownloadInterval(),
		MaxImageEdge:     cfg.MaxImageEdge,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepSessions(ctx, sessions, logger)

	logger.Info("bot started", "username", tg.Username(), "parallel", cfg.ParallelVariations)

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	// The session bounds each run; the extra minute covers sending the
	// results and Download-All pacing after it.
	updateTimeout := cfg.RequestTimeout() + time.Minute

	sem := make(chan struct{}, cfg.MaxConcurrent)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, updateTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}

func sweepSessions(ctx context.Context, sessions *session.Store[int64], logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := sessions.Sweep(now); n > 0 {
				logger.Debug("idle sessions removed", "count", n)
			}
		}
	}
}
