package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"receipt-keeper/internal/api"
	"receipt-keeper/internal/api/handlers"
	"receipt-keeper/internal/repository"
	"receipt-keeper/internal/service"
	"receipt-keeper/pkg/auth"
	"receipt-keeper/pkg/config"
	"receipt-keeper/pkg/logger"
	"receipt-keeper/pkg/middleware"
	"receipt-keeper/pkg/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type closer interface {
	Close() error
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := logger.Init(cfg.Logger.Level, cfg.Logger.Development); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			return serve(cmd.Context(), cfg, logger.Get())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) error {
	appLogger.Info("Starting service", zap.String("name", cfg.App.Name), zap.String("env", cfg.App.Env))

	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db, appLogger)
	fileRepo := repository.NewReceiptFileRepository(db, appLogger)
	extractionRepo := repository.NewExtractionRepository(db, appLogger)
	receiptRepo := repository.NewReceiptRepository(db, appLogger)

	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Algorithm, cfg.JWT.AccessExp, cfg.JWT.RefreshExp)

	// Services
	authService := service.NewAuthService(userRepo, jwtManager, appLogger)

	llm, err := service.NewLLM(ctx, &cfg.LLM, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM: %w", err)
	}
	if c, ok := llm.(closer); ok {
		defer c.Close()
	}

	ocrService := service.NewOCRService(cfg.OCR.Lang, appLogger)
	defer ocrService.Close()

	extractor := service.NewExtractionService(ocrService, llm, appLogger).
		WithDefaultCurrency(cfg.Extraction.DefaultCurrency)
	store := service.NewFileStore(cfg.Storage.Dir, appLogger)
	receiptService := service.NewReceiptService(fileRepo, extractionRepo, receiptRepo, store, extractor, appLogger)

	app := api.SetupRouter(
		api.Handlers{
			Auth:    handlers.NewAuthHandler(authService, appLogger),
			Receipt: handlers.NewReceiptHandler(receiptService, appLogger),
			Health:  handlers.NewHealthHandler(db, appLogger),
		},
		middleware.AuthMiddleware(jwtManager, authService, appLogger),
		middleware.NewRateLimiter(cfg.Extraction.RatePerMinute, cfg.Extraction.RateBurst),
		&cfg.Server,
		appLogger,
	)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
	return nil
}
