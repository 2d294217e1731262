package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradeedge-alerts/internal/alert/config"
	delivery "tradeedge-alerts/internal/alert/delivery/http"
	"tradeedge-alerts/internal/alert/repository"
	"tradeedge-alerts/internal/alert/service"
	"tradeedge-alerts/pkg/logger"
	"tradeedge-alerts/pkg/postgres"
	"tradeedge-alerts/pkg/redis"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	swagger "github.com/swaggo/echo-swagger"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the API service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting API Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	alertsRepo := repository.NewStockAlertsRepository(db.DB)
	prefsRepo := repository.NewNotificationPreferencesRepository(db.DB)
	settingsRepo := repository.NewUserSettingsRepository(db.DB)
	attemptsRepo := repository.NewDeliveryAttemptsRepository(db.DB)

	// Initialize services
	oracle := service.NewTierOracle(settingsRepo, cfg.Engine.PolicyCacheTTL)
	policyGate := service.NewPolicyGate(oracle, appLogger)
	alertSvc := service.NewStockAlertService(alertsRepo, appLogger)
	preferenceSvc := service.NewPreferenceService(prefsRepo, alertsRepo, policyGate, appLogger)
	settingSvc := service.NewUserSettingService(settingsRepo, appLogger)
	deliverySvc := service.NewDeliveryService(attemptsRepo, appLogger)
	// Publish-only on the API side, the alert service owns consumption.
	tickSvc := service.NewTickService(cfg, redisClient, nil, appLogger)

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")

	alertHandler := delivery.NewStockAlertHandler(alertSvc, appLogger)
	alertsGroup := apiV1.Group("/alerts")
	alertHandler.RegisterRoutes(alertsGroup)

	usersGroup := apiV1.Group("/users")
	preferenceHandler := delivery.NewPreferenceHandler(preferenceSvc, appLogger)
	preferenceHandler.RegisterRoutes(usersGroup)

	settingHandler := delivery.NewUserSettingHandler(settingSvc, appLogger)
	settingHandler.RegisterRoutes(usersGroup)

	deliveryHandler := delivery.NewDeliveryHandler(deliverySvc, appLogger)
	deliveriesGroup := apiV1.Group("/deliveries")
	deliveryHandler.RegisterRoutes(deliveriesGroup)

	tickHandler := delivery.NewTickHandler(tickSvc, appLogger)
	ticksGroup := apiV1.Group("/ticks")
	tickHandler.RegisterRoutes(ticksGroup)

	e.GET("/swagger/*", swagger.WrapHandler)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

// @title TradeEdge Alerts API
// @version 1.0
// @description Write API for stock alerts, notification preferences and channel settings.
// @termsOfService http://swagger.io/terms/
// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @BasePath /api/v1
func main() {
	rootCmd := &cobra.Command{Use: "api-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-api.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing api-service CLI: %s\n", err)
		os.Exit(1)
	}
}
