package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/notifyhub/internal/api"
	"github.com/lalith-99/notifyhub/internal/config"
	"github.com/lalith-99/notifyhub/internal/db"
	"github.com/lalith-99/notifyhub/internal/middleware"
	"github.com/lalith-99/notifyhub/internal/observ"
	"github.com/lalith-99/notifyhub/internal/repository/postgres"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup has no request deadline; Background() is the right root.
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	pool := database.Pool()
	hierarchyRepo := postgres.NewHierarchyStore(pool, logger)
	userRepo := postgres.NewUserStore(pool, logger)
	templateRepo := postgres.NewTemplateStore(pool)
	broadcastRepo := postgres.NewBroadcastStore(pool, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Recovery())
	srv.Use(middleware.RequestLogger(logger))
	srv.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	srv.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	// Liveness plus a DB ping, outside the API prefix so load balancers
	// can reach it without knowing the API version.
	srv.GET("/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.RegisterRoutes(srv, api.Handlers{
		Hierarchy: api.NewHierarchyHandler(hierarchyRepo, logger),
		Users:     api.NewUserHandler(userRepo, broadcastRepo, logger),
		Templates: api.NewTemplateHandler(templateRepo, logger),
		Broadcast: api.NewBroadcastHandler(broadcastRepo, logger),
		System:    api.NewSystemHandler(hierarchyRepo, broadcastRepo, logger),
	})

	logger.Info("starting notifyhub",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)
	return srv.Run(":" + cfg.Port)
}

func corsConfig(origins string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	if origins == "*" {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = strings.Split(origins, ",")
	c.AllowCredentials = true
	return c
}
