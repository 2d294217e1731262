package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tradeedge-alerts/internal/alert/channel"
	"tradeedge-alerts/internal/alert/config"
	"tradeedge-alerts/internal/alert/delivery/consumer"
	"tradeedge-alerts/internal/alert/repository"
	"tradeedge-alerts/internal/alert/service"
	"tradeedge-alerts/pkg/common"
	"tradeedge-alerts/pkg/logger"
	"tradeedge-alerts/pkg/postgres"
	"tradeedge-alerts/pkg/redis"
	"tradeedge-alerts/pkg/telegram"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the alert service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	appLogger.Info("Starting Alert Service", zap.String("name", cfg.App.Name))

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
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
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
		appLogger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Create the consumer group if it doesn't exist
	// MKSTREAM creates the stream if it doesn't exist
	if err := redisClient.XGroupCreateMkStream(context.Background(), common.RedisStreamPriceTicks, common.RedisStreamGroup, "0").Err(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
		}
	}

	// Initialize repositories
	alertsRepo := repository.NewStockAlertsRepository(db.DB)
	prefsRepo := repository.NewNotificationPreferencesRepository(db.DB)
	settingsRepo := repository.NewUserSettingsRepository(db.DB)
	eventsRepo := repository.NewFiringEventsRepository(db.DB)
	attemptsRepo := repository.NewDeliveryAttemptsRepository(db.DB)

	// Operator notifications for dead-lettered deliveries
	var opsNotifier telegram.Notifier
	if cfg.Telegram.Enabled {
		opsNotifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", zap.Error(err))
		}
	}

	// Channel adapters
	adapters := []channel.Adapter{
		channel.NewWebAdapter(redisClient, cfg.Redis.StreamMaxLen),
		channel.NewEmailAdapter(cfg.Email),
		channel.NewSMSAdapter(cfg.SMS),
	}

	// Initialize the engine
	oracle := service.NewTierOracle(settingsRepo, cfg.Engine.PolicyCacheTTL)
	policyGate := service.NewPolicyGate(oracle, appLogger)
	evaluator := service.NewCrossingEvaluator()
	ledger := service.NewFiringLedger(eventsRepo, appLogger, cfg.Engine.LedgerCommitRetries, cfg.Engine.RetryBackoffBase)
	dispatcher := service.NewDeliveryDispatcher(cfg, attemptsRepo, eventsRepo, settingsRepo, prefsRepo, policyGate, adapters, redisClient, opsNotifier, appLogger)
	orchestrator := service.NewAlertOrchestrator(cfg, alertsRepo, prefsRepo, eventsRepo, evaluator, ledger, dispatcher, appLogger)
	tickSvc := service.NewTickService(cfg, redisClient, orchestrator, appLogger)

	dispatcher.Start(ctx)
	orchestrator.Start(ctx)

	// Re-dispatch events left undelivered by a previous run
	orchestrator.ResumePending(ctx)

	// Initialize and start the tick consumer
	alertConsumer := consumer.NewAlertConsumer(cfg, tickSvc, dispatcher, orchestrator, appLogger)
	if err := alertConsumer.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start alert consumer", zap.Error(err))
	}

	appLogger.Info("Alert service started. Waiting for ticks...")

	// Wait for interrupt signal to gracefully shut down the service
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down alert service...")
	cancel()
	alertConsumer.Stop()
	orchestrator.Stop()
	dispatcher.Stop()
	appLogger.Info("Alert service stopped.")
}

func main() {
	rootCmd := &cobra.Command{Use: "alert-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-alert.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing alert-service CLI: %s\n", err)
		os.Exit(1)
	}
}
