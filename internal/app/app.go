package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"localchat/backend/internal/api"
	"localchat/backend/internal/config"
	"localchat/backend/internal/database"
	"localchat/backend/internal/llm"
	"localchat/backend/internal/repository"
	"localchat/backend/internal/service"
)

func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)
	logConfigSource()

	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}()
	slog.Info("Successfully connected to SQLite database.", "path", cfg.DatabasePath)

	chatRepo := repository.NewSQLiteChatRepository(db)
	userRepo := repository.NewSQLiteUserRepository(db)
	llamaClient := llm.NewLlamaClient(cfg.LlamaBaseURL)
	checkUpstream(llamaClient)

	limiter := service.NewRateLimiter(time.Duration(cfg.RateLimitWindowSecs)*time.Second, cfg.RateLimitMaxAttempts)
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go limiter.Janitor(janitorCtx, 10*time.Minute, time.Hour)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, time.Duration(cfg.TokenExpiryHours)*time.Hour, cfg.GoogleClientID, nil)
	chatService := service.NewChatService(chatRepo, llamaClient)

	chatHandler := api.NewChatHandler(chatService, cfg.SystemPrompt)
	authHandler := api.NewAuthHandler(authService, limiter)
	systemHandler := api.NewSystemHandler(llamaClient)
	router := api.NewRouter(chatHandler, authHandler, systemHandler, authService)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("Starting server", "port", cfg.AppPort)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		return 1
	}

	return 0
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// checkUpstream probes the inference server once at startup. The backend
// still starts when it is down; sends will report the unreachable state to
// the user instead.
func checkUpstream(provider llm.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := provider.Health(ctx); err != nil {
		slog.Warn("Inference server not reachable at startup; chat sends will fail until it is up.", "error", err)
		return
	}
	slog.Info("Inference server is reachable.")
}
