package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xferlogic/gateway/internal/api"
	"github.com/xferlogic/gateway/internal/auth"
	"github.com/xferlogic/gateway/internal/config"
	"github.com/xferlogic/gateway/internal/core"
	"github.com/xferlogic/gateway/internal/store"
)

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("log_level", level).Warn("Unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	if !cfg.EnvFileLoaded {
		log.Debug("No .env file found, using process environment")
	}

	ctx := context.Background()

	// Initialize database store
	dbStore, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer dbStore.Close()
	log.WithField("postgres", cfg.UsesPostgres()).Info("Database ready")

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	usage := core.NewUsageRecorder(dbStore, cfg.UsageLogMode == config.UsageModeAsync, log)

	// Providers without a key still start; their calls fail individually.
	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY is not set, OpenAI calls will fail")
	}
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY is not set, Gemini calls will fail")
	}
	openaiProvider := core.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAITextModel, cfg.OpenAIImageModel)
	geminiProvider := core.NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel, log)
	defer geminiProvider.Close()

	users := core.NewUserService(dbStore, tokens, log)
	generation := core.NewGenerationService(openaiProvider, geminiProvider, openaiProvider, usage, log)
	documents := core.NewDocumentService(usage, log)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(users, generation, documents, tokens, dbStore, log, cfg.ExposeProviderErrors)
	router := api.NewRouter(apiHandler, log, api.RouterOptions{
		MaxBodyBytes:       cfg.MaxBodyBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // image generation can be slow
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", serverAddr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatalf("Could not listen on %s", serverAddr)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	// Flush usage records still being written in async mode.
	usage.Wait()
	log.Info("Server exiting gracefully")
}
