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

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/iexcalibur/invoice-extractor/api"
	"github.com/iexcalibur/invoice-extractor/internal/ai"
	"github.com/iexcalibur/invoice-extractor/internal/auth"
	"github.com/iexcalibur/invoice-extractor/internal/db"
	"github.com/iexcalibur/invoice-extractor/internal/export"
	"github.com/iexcalibur/invoice-extractor/internal/extract"
	"github.com/iexcalibur/invoice-extractor/internal/layout"
	"github.com/iexcalibur/invoice-extractor/internal/models"
	"github.com/iexcalibur/invoice-extractor/internal/ocr"
	"github.com/iexcalibur/invoice-extractor/internal/pipeline"
	"github.com/iexcalibur/invoice-extractor/internal/storage"
	"github.com/iexcalibur/invoice-extractor/internal/textfix"
	"github.com/iexcalibur/invoice-extractor/internal/vendor"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := loadConfig(configPath())
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *models.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := vendor.NewRegistry(cfg.Registry.Path, logger)
	if err != nil {
		return fmt.Errorf("vendor registry: %w", err)
	}

	engine := ocr.NewEngine(ocr.Config{
		Language:      cfg.OCR.Language,
		MinTextLength: cfg.OCR.MinTextLength,
	}, logger)

	patternEx := extract.NewExtractor(registry, logger, cfg.Pipeline.PatternThreshold)
	layoutClient := layout.NewClient(cfg.Layout.BaseURL, cfg.Layout.RequestTimeout.Std(), logger)

	var aiEx *ai.Extractor
	if provider := buildProvider(cfg, logger); provider != nil {
		aiEx = ai.NewExtractor(provider, registry, logger)
	}

	orch := pipeline.New(cfg.Pipeline, engine, textfix.NewCorrector(), registry,
		patternEx, layoutClient, aiEx, logger)

	// Persistence is optional. Without DATABASE_URL the service keeps
	// extractions in memory only.
	var store db.Store = db.NewMemoryStore()
	if url := db.DatabaseURL(); url != "" {
		pool, err := db.NewPool(ctx, url, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()

		pg := db.NewPgStore(pool, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pg
		logger.Info("postgres store initialized")
	} else {
		logger.Warn("no DATABASE_URL, running in OCR-only mode (in-memory store)")
	}

	var archive *storage.Archive
	if cfg.Storage.Endpoint != "" {
		archive, err = storage.NewArchive(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Warn("object storage unavailable, uploads will not be archived", zap.Error(err))
			archive = nil
		} else {
			logger.Info("document archive initialized", zap.String("bucket", cfg.Storage.Bucket))
		}
	}

	handler := api.NewHandler(orch, store, registry, export.NewService(store, logger), archive, logger)

	var authMW func(http.Handler) http.Handler
	var login http.HandlerFunc
	if cfg.Auth.JWTSecret != "" {
		mgr := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Std(), logger)
		authMW = mgr.Middleware
		login = auth.LoginHandler(mgr, auth.Credentials{
			Username:     cfg.Auth.Username,
			PasswordHash: cfg.Auth.PasswordHash,
		}, logger)
	} else {
		logger.Warn("no JWT secret configured, API is unauthenticated")
	}

	router := handler.SetupRoutes(authMW, login)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", addr),
			zap.String("ocr_engine", cfg.OCR.Engine),
			zap.String("ai_provider", cfg.AI.DefaultProvider),
			zap.Bool("layout_service", layoutClient.Enabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildProvider selects the LLM backend for the ocr-llm and vision tiers.
// Without a usable key those tiers are simply left out of the chain.
func buildProvider(cfg *models.Config, logger *zap.Logger) ai.Provider {
	switch cfg.AI.DefaultProvider {
	case "gemini":
		if cfg.AI.Gemini.APIKey == "" {
			logger.Warn("gemini selected but no API key, LLM tiers disabled")
			return nil
		}
		return ai.NewGeminiProvider(cfg.AI.Gemini.APIKey, cfg.AI.Gemini.Model)
	case "openai":
		if cfg.AI.OpenAI.APIKey == "" {
			logger.Warn("openai selected but no API key, LLM tiers disabled")
			return nil
		}
		return ai.NewOpenAIProvider(cfg.AI.OpenAI.APIKey, cfg.AI.OpenAI.BaseURL, cfg.AI.OpenAI.Model)
	default:
		logger.Warn("unknown AI provider, LLM tiers disabled",
			zap.String("provider", cfg.AI.DefaultProvider))
		return nil
	}
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

func loadConfig(path string) (*models.Config, error) {
	// Tier toggles default on; the file only needs to mention the ones it
	// turns off.
	cfg := models.Config{
		Pipeline: models.PipelineConfig{
			UsePattern: true,
			UseLayout:  true,
			UseOCRLLM:  true,
			UseVision:  true,
		},
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment are enough to run.
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &cfg.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.AI.OpenAI.APIKey = key
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		cfg.AI.OpenAI.BaseURL = url
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.AI.OpenAI.Model = model
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.AI.Gemini.APIKey = key
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		cfg.AI.DefaultProvider = provider
	}
	if url := os.Getenv("LAYOUT_SERVICE_URL"); url != "" {
		cfg.Layout.BaseURL = url
	}
	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		cfg.Storage.Endpoint = endpoint
	}
	if key := os.Getenv("MINIO_ACCESS_KEY"); key != "" {
		cfg.Storage.AccessKey = key
	}
	if key := os.Getenv("MINIO_SECRET_KEY"); key != "" {
		cfg.Storage.SecretKey = key
	}
	if bucket := os.Getenv("MINIO_BUCKET"); bucket != "" {
		cfg.Storage.Bucket = bucket
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if user := os.Getenv("AUTH_USERNAME"); user != "" {
		cfg.Auth.Username = user
	}
	if hash := os.Getenv("AUTH_PASSWORD_HASH"); hash != "" {
		cfg.Auth.PasswordHash = hash
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}
