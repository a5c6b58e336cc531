package api

import (
	"receipt-keeper/docs"
	"receipt-keeper/internal/api/handlers"
	"receipt-keeper/pkg/config"
	"receipt-keeper/pkg/metrics"
	"receipt-keeper/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth    *handlers.AuthHandler
	Receipt *handlers.ReceiptHandler
	Health  *handlers.HealthHandler
}

func SetupRouter(
	h Handlers,
	authMiddleware fiber.Handler,
	extractionLimiter *middleware.RateLimiter,
	serverCfg *config.ServerConfig,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    serverCfg.BodyLimit,
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())
	app.Use(metrics.Middleware())

	app.Get("/metrics", metrics.Handler())

	_ = docs.SwaggerInfo
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api/v1")

	api.Get("/health", h.Health.Health)
	api.Get("/health/ready", h.Health.Ready)

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.RefreshToken)
	auth.Post("/logout", h.Auth.Logout)

	// Protected routes
	receipts := api.Group("/receipts", authMiddleware)
	receipts.Post("/extractions", middleware.RateLimit(extractionLimiter), h.Receipt.CreateExtraction)
	receipts.Post("", h.Receipt.CreateReceipt)
	receipts.Get("", h.Receipt.ListReceipts)
	receipts.Get("/export", h.Receipt.ExportReceipts)
	receipts.Get("/:id", h.Receipt.GetReceipt)
	receipts.Patch("/:id", h.Receipt.UpdateReceipt)
	receipts.Get("/:id/photo", h.Receipt.GetPhoto)

	appLogger.Debug("Routes registered", zap.Int("count", len(app.GetRoutes())))

	return app
}
