package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricewatch/internal/client"
	"pricewatch/internal/configuration"
	"pricewatch/internal/database"
	"pricewatch/internal/logger"
	"pricewatch/internal/notify"
	"pricewatch/internal/server"
	"pricewatch/internal/tracker"

	"github.com/go-redis/redis/v9"
)

func main() {
	if err := runApp(); err != nil {
		os.Exit(1)
	}
}

func runApp() error {
	logOutput := io.Writer(os.Stdout)
	appLogger := logger.NewLogger(logger.LevelError, logOutput)

	defer func() {
		if r := recover(); r != nil {
			appLogger.Errorf("APPLICATION CRASHED: %+v", r)
		}
	}()

	config, err := configuration.GetConfig("config.toml")
	if err != nil {
		appLogger.Error("Error getting configuration from config.toml:", err)
		return err
	}

	if config.LogToFile {
		logFile, err := os.OpenFile("pricewatch.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			appLogger.Error("Error opening log file:", err)
			return err
		}
		defer func() {
			if err := logFile.Close(); err != nil {
				appLogger.Error("Error closing log file:", err)
			}
		}()
		logOutput = io.MultiWriter(logOutput, logFile)
	}
	appLogger = logger.NewLogger(config.LogLevel, logOutput)

	if config.LogLevel >= logger.LevelDebug {
		conf, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			appLogger.Error("Error marshalling Config to JSON:", err)
			return err
		}
		appLogger.Debugf("Config:\n%s", conf)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger.Info("Connecting to DB at", config.DatabaseURI)
	dbConn, err := database.ConnectDB(ctx, config.DatabaseURI)
	if err != nil {
		appLogger.Error("Error connecting to DB:", err)
		return err
	}
	defer func() {
		if err := dbConn.Disconnect(context.Background()); err != nil {
			appLogger.Error("Error disconnecting from DB:", err)
		}
	}()
	db := database.Database{Database: dbConn.Database(database.Name)}

	var redisClient *redis.Client
	if config.RedisAddress != "" {
		appLogger.Info("Using Redis cache at", config.RedisAddress)
		redisClient = redis.NewClient(&redis.Options{Addr: config.RedisAddress})
		defer func() {
			if err := redisClient.Close(); err != nil {
				appLogger.Error("Error closing Redis client:", err)
			}
		}()
	}

	httpClient := client.Client{
		Client: &http.Client{Timeout: config.RequestTimeout},
		Redis:  redisClient,
		Logger: appLogger,
	}

	var channels []notify.Channel
	for _, u := range config.WebhookURLs {
		channels = append(channels, notify.WebhookChannel{URL: u, Client: httpClient})
	}
	if config.Email.Configured() {
		channels = append(channels, notify.EmailChannel{
			Host:     config.Email.Host,
			Port:     config.Email.Port,
			Username: config.Email.Username,
			Password: config.Email.Password,
			From:     config.Email.From,
			To:       config.Email.To,
		})
	}
	appLogger.Infof("Notifying through %d channel(s)", len(channels))
	dispatcher := notify.Dispatcher{
		Policy: notify.Policy{
			NotifyOnDecrease:     config.NotifyOnDecrease,
			NotifyOnIncrease:     config.NotifyOnIncrease,
			MinimumChangePercent: config.MinimumChangePercent,
		},
		Channels: channels,
		Logger:   appLogger,
	}

	engine := tracker.NewEngine(
		db,
		httpClient,
		tracker.NewRateLimiter(config.MaxConcurrent, config.PerSiteDelay),
		dispatcher,
		appLogger,
		tracker.Config{
			HighInterval:         config.HighInterval,
			RegularInterval:      config.RegularInterval,
			WeeklyScanDay:        config.WeeklyScanDay,
			WeeklyScanHour:       config.WeeklyScanHour,
			MaintenanceHour:      config.MaintenanceHour,
			StaleThreshold:       config.StaleThreshold,
			MaxRetries:           config.MaxRetries,
			RetryBackoff:         config.RetryBackoff,
			RequestTimeout:       config.RequestTimeout,
			ClassifierWindow:     config.ClassifierWindow,
			HighChangeRate:       config.HighChangeRate,
			NewProductAge:        config.NewProductAge,
			TrendWindow:          config.TrendWindow,
			TrendDeadZonePercent: config.TrendDeadZonePercent,
			MaxHistoryEntries:    config.MaxHistoryEntries,
			HistoryRetention:     config.HistoryRetention,
		},
	)

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engine.Run(ctx)
	}()

	srv := server.Server{
		DB:                db,
		Engine:            engine,
		Client:            httpClient,
		Logger:            appLogger,
		AuthSecretKey:     config.AuthSecretKey,
		AdminPasswordHash: config.AdminPasswordHash,
	}

	httpSrv := &http.Server{
		Handler:      srv.Router(),
		Addr:         config.ServerAddress,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		appLogger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Error shutting down HTTP server:", err)
		}
	}()

	appLogger.Info("Serving on", httpSrv.Addr)
	err = httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	} else if err != nil {
		appLogger.Error("HTTP server error:", err)
		stop()
	}
	<-engineDone
	appLogger.Info("Shutdown complete")
	return err
}
