package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/procurepay/backend/docs"
	"github.com/procurepay/backend/internal/audit"
	"github.com/procurepay/backend/internal/catalog"
	"github.com/procurepay/backend/internal/config"
	"github.com/procurepay/backend/internal/database"
	"github.com/procurepay/backend/internal/handlers"
	"github.com/procurepay/backend/internal/logging"
	mW "github.com/procurepay/backend/internal/middleware"
	"github.com/procurepay/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Procurement Settlement API
// @version 1.0
// @description Payment ledger and landed-cost distribution for purchase orders
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	viper.BindEnv("log.environment", "ENV_NAME")
	viper.BindEnv("log.level", "LOG_LEVEL")

	viper.BindEnv("settlement.lock_timeout", "SETTLEMENT_LOCK_TIMEOUT")
	viper.BindEnv("settlement.reference_currency", "SETTLEMENT_REFERENCE_CURRENCY")
	viper.BindEnv("settlement.missing_fx_rate_policy", "SETTLEMENT_MISSING_FX_RATE_POLICY")
	viper.BindEnv("settlement.fx_cache_ttl", "SETTLEMENT_FX_CACHE_TTL")
	viper.BindEnv("settlement.distribution_guard_ttl", "SETTLEMENT_DISTRIBUTION_GUARD_TTL")
	viper.BindEnv("settlement.receipt_dir", "SETTLEMENT_RECEIPT_DIR")
	viper.BindEnv("settlement.max_receipt_bytes", "SETTLEMENT_MAX_RECEIPT_BYTES")
	viper.BindEnv("settlement.company_name", "SETTLEMENT_COMPANY_NAME")
	viper.BindEnv("settlement.company_bic", "SETTLEMENT_COMPANY_BIC")

	viper.BindEnv("notification.queue_url", "NOTIFICATION_QUEUE_URL")
	viper.BindEnv("notification.aws_region", "AWS_REGION")
	viper.BindEnv("notification.aws_access_key", "AWS_ACCESS_KEY_ID")
	viper.BindEnv("notification.aws_secret", "AWS_SECRET_ACCESS_KEY")
	viper.BindEnv("notification.recipient_group", "NOTIFICATION_RECIPIENT_GROUP")
	viper.BindEnv("notification.timeout", "NOTIFICATION_TIMEOUT")

	configErr := viper.ReadInConfig()

	logCfg := config.LoadLoggerConfig()
	logger, err := logging.New(logCfg.Environment, logCfg.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if configErr != nil {
		logger.Info("config file not found, using environment and defaults", zap.Error(configErr))
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Procurement Settlement API"
	docs.SwaggerInfo.Description = "Payment ledger and landed-cost distribution for purchase orders"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	settlementCfg := config.LoadSettlementConfig()
	notificationCfg := config.LoadNotificationConfig()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	db, err := database.Open(startCtx, database.GetConfig(), logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	redisClient := database.InitRedis(startCtx, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditLogger := audit.NewLogger(logger)

	catalogStore, err := catalog.NewStore(startCtx, db, auditLogger, logger)
	if err != nil {
		logger.Fatal("failed to load status catalog", zap.Error(err))
	}

	var notifier services.Notifier = services.NewLogNotifier(logger)
	if notificationCfg.QueueURL != "" {
		sqsClient, err := services.NewSQSClient(startCtx, notificationCfg)
		if err != nil {
			logger.Fatal("failed to initialize notification queue", zap.Error(err))
		}
		notifier = services.NewSQSNotifier(sqsClient, notificationCfg, logger)
	}

	receiptStore := services.NewFileReceiptStore(settlementCfg.ReceiptDir, settlementCfg.MaxReceiptBytes)
	recipients := services.NewRecipientResolver(db, notificationCfg.RecipientGroup)
	fxRates := services.NewFXRateService(db, redisClient, settlementCfg, logger)

	ledgerService := services.NewPaymentLedgerService(db, catalogStore, receiptStore, notifier, recipients,
		auditLogger, settlementCfg, notificationCfg, logger)
	distributionService := services.NewDistributionService(db, redisClient, fxRates, auditLogger, settlementCfg, logger)
	iso20022Service := services.NewISO20022Service(settlementCfg)
	qrService := services.NewQRService(redisClient, logger)

	paymentHandler := handlers.NewPaymentHandler(ledgerService, iso20022Service, qrService, logger)
	distributionHandler := handlers.NewDistributionHandler(distributionService, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogStore, logger)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mW.AuthMiddleware)

		r.Post("/orders/{orderId}/payments", paymentHandler.ApplyPayment)
		r.Get("/orders/{orderId}/payments", paymentHandler.ListPayments)
		r.Post("/payments/{entryId}/reversal", paymentHandler.ReversePayment)
		r.Get("/payments/{entryId}/iso20022", paymentHandler.ExportISO20022)
		r.Get("/payments/{entryId}/qr", paymentHandler.RemittanceQR)

		r.Post("/distributions/preview", distributionHandler.Preview)
		r.Post("/distributions", distributionHandler.Create)
		r.Get("/distributions/{requestId}/items", distributionHandler.ListItems)

		r.Get("/catalog", catalogHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(mW.RequireRole("admin"))
			r.Post("/admin/catalog/reload", catalogHandler.Reload)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Let in-flight payment notifications finish before the pools close.
	ledgerService.WaitForNotifications()

	logger.Info("server stopped")
}
