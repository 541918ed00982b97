package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jdcastro/treasury/internal/config"
	"github.com/jdcastro/treasury/internal/database"
	"github.com/jdcastro/treasury/internal/handlers"
	"github.com/jdcastro/treasury/internal/logger"
	"github.com/jdcastro/treasury/internal/middleware"
	"github.com/jdcastro/treasury/internal/repository"
	"github.com/jdcastro/treasury/internal/services"
	"github.com/shopspring/decimal"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting treasury API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Create database connection pool
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Initialize repository layer
	configRepo := repository.NewConfigurationRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	businessRepo := repository.NewBusinessRepository(db)
	installmentRepo := repository.NewInstallmentRepository(db)

	// Initialize the engine services
	resolver := services.NewConfigResolver(configRepo, log)
	calculator := services.NewAssessmentCalculator(resolver, assessmentRepo, log)
	scheduler := services.NewInstallmentScheduler(assessmentRepo, businessRepo, installmentRepo, log)
	penalties := services.NewPenaltyEngine(resolver, installmentRepo, log)
	discounts := services.NewDiscountEvaluator(resolver, installmentRepo, services.DiscountDefaults{
		BusinessQuarterlyPercent: decimal.NewFromFloat(cfg.Discount.BusinessQuarterlyPercent),
		RPTAnnualPercent:         decimal.NewFromFloat(cfg.Discount.RPTAnnualPercent),
	}, log)
	payments := services.NewPaymentReconciler(installmentRepo, log)

	// Initialize handlers
	configHandler := handlers.NewConfigHandler(resolver)
	assessmentHandler := handlers.NewAssessmentHandler(calculator, scheduler)
	revenueHandler := handlers.NewRevenueHandler(penalties, discounts, payments)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		cfgGroup := v1.Group("/config")
		{
			cfgGroup.GET("", configHandler.List)
			cfgGroup.POST("", configHandler.Create)
			cfgGroup.PUT("/:id", configHandler.Update)
			cfgGroup.DELETE("/:id", configHandler.Delete)
		}

		v1.POST("/assessments", assessmentHandler.Assess)
		v1.POST("/registrations/:id/approve", assessmentHandler.Approve)
		v1.POST("/businesses/:id/installments", assessmentHandler.GenerateBusiness)

		v1.POST("/penalties/run", revenueHandler.RunPenalties)
		v1.GET("/discounts/quote", revenueHandler.QuoteDiscount)
		v1.POST("/payments/webhook", revenueHandler.PaymentWebhook)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
