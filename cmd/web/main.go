package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lookbook-studio/internal/config"
	"lookbook-studio/internal/gemini"
	"lookbook-studio/internal/httpclient"
	"lookbook-studio/internal/logging"
	"lookbook-studio/internal/lookbook"
	"lookbook-studio/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout(),
		Logger:     logger,
	})

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	analyzer := lookbook.NewGeminiAnalyzer(gem, cfg.AnalysisModel)
	stylist := lookbook.NewGeminiStylist(gem, cfg.ImageModel, cfg.AspectRatio)

	sessions := newSessionStore(cfg, analyzer, stylist, logger)

	s := newServer(serverOptions{
		Sessions:         sessions,
		Logger:           logger,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		MaxImageEdge:     cfg.MaxImageEdge,
		OutputDir:        cfg.OutputDir,
		DownloadInterval: cfg.DownloadInterval(),
	})

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           withLogging(s.routes(), logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				sessions.Sweep(now)
			}
		}
	}()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.drain(shutdownCtx)
	}()

	logger.Info("web started", "addr", cfg.WebAddr, "parallel", cfg.ParallelVariations)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	<-stopped
}

// newSessionStore builds per-cookie sessions; each run is bounded by
// REQUEST_TIMEOUT_SECONDS.
func newSessionStore(cfg config.Config, analyzer lookbook.Analyzer, stylist lookbook.Stylist, logger *slog.Logger) *session.Store[string] {
	return session.NewStore[string](session.Options{
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
}
