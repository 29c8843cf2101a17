package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tbnt/backend/internal/auth"
	"tbnt/backend/internal/config"
	"tbnt/backend/internal/database"
	"tbnt/backend/internal/handler"
	"tbnt/backend/internal/hub"
	"tbnt/backend/internal/logging"
	"tbnt/backend/internal/repository"
	"tbnt/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Swagger imports
	_ "tbnt/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           TBNT Chat API
// @version         1.0
// @description     Real-time lobby and private chat for the TBNT community.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		l := logging.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	l := logging.L()

	// Connect to the database
	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		l.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to connect to database")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	users := repository.NewGormUserRepository(db)
	messages := repository.NewGormMessageRepository(db)
	registry := hub.NewRegistry()
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	router := service.NewRouter(messages, users, registry, cfg.ChatFanoutConcurrency)
	chatService := service.NewChatService(verifier, users, registry, router, service.ChatOptions{
		CloseSuperseded: cfg.ChatCloseSuperseded,
	})
	historyService := service.NewHistoryService(messages, users)

	chatHandler := handler.NewChatHandler(chatService, historyService, registry, handler.WSConfig{
		WriteTimeout:    cfg.ChatWriteTimeout,
		MaxMessageBytes: cfg.ChatMaxMessageBytes,
	})

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.GinMiddleware(l))

	// Swagger route
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Prometheus metrics
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	apiV1 := engine.Group("/api/v1")
	chatHandler.RegisterRoutes(apiV1, auth.AuthMiddleware(verifier, users))

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: engine,
	}

	go func() {
		l.Info().Str("addr", cfg.ServerAddr).Msg("server is running")
		l.Info().Msgf("Swagger UI is available at http://localhost%s/swagger/index.html", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("server forced to shutdown")
	}

	// Hijacked websocket connections are not tracked by the http server.
	for _, ch := range registry.Channels() {
		ch.Close(hub.CloseGoingAway, "server shutting down")
	}

	l.Info().Msg("server exited")
}
