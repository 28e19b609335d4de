package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clicktoassignment/backend/internal/config"
	"github.com/clicktoassignment/backend/internal/db"
	"github.com/clicktoassignment/backend/internal/logger"
	"github.com/clicktoassignment/backend/internal/middleware"
	"github.com/clicktoassignment/backend/internal/routes"
	"github.com/clicktoassignment/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, "+middleware.RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		// Handle preflight request
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Initialize("INFO", "")
		logger.Fatal("Failed to load configuration", map[string]interface{}{"error": err.Error()})
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Dir)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}
	if cfg.JWT.Secret == "" {
		logger.Warn("jwt.secret is empty, authenticated routes will reject every token", nil)
	}

	gdb, err := db.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	if err := db.Migrate(gdb); err != nil {
		logger.Fatal("Failed to migrate database", map[string]interface{}{"error": err.Error()})
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Redis unreachable, rate limiting will fail open", map[string]interface{}{
				"addr":  cfg.Redis.Addr,
				"error": err.Error(),
			})
		}
		cancel()
	} else {
		logger.Warn("Redis not configured, generation rate limiting disabled", nil)
	}

	node, err := services.NewSnowflakeNode(cfg.Snowflake.Node)
	if err != nil {
		logger.Fatal("Failed to create job number generator", map[string]interface{}{"error": err.Error()})
	}
	svc := routes.NewServices(gdb, cfg, node)

	if cfg.Server.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(middleware.RequestID())
	r.Use(middleware.CustomLoggerMiddleware())
	r.Use(CORSMiddleware(cfg.Server.CORSOrigin))
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		dbStatus := gin.H{"status": "ok"}
		statusCode := http.StatusOK
		overall := "ok"
		if err := db.Ping(gdb); err != nil {
			dbStatus = gin.H{"status": "error", "error": err.Error()}
			statusCode = http.StatusServiceUnavailable
			overall = "error"
		}

		llmStatus := gin.H{"status": "not_configured", "provider": svc.LLM.Provider()}
		if svc.LLM.Configured() {
			llmStatus["status"] = "ok"
		}

		c.JSON(statusCode, gin.H{
			"status":    overall,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   "1.0.0",
			"services": gin.H{
				"database": dbStatus,
				"llm":      llmStatus,
			},
		})
	})

	routes.SetupRoutes(r, gdb, cfg, svc, redisClient)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting content portal backend", map[string]interface{}{
		"port":     cfg.Server.Port,
		"gin_mode": gin.Mode(),
		"llm":      svc.LLM.Provider(),
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	logger.Info("Shutting down server gracefully...", nil)

	// In-flight generations keep their own timeout; give them room to finish.
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.LLM.TimeoutSeconds+30)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		logger.Info("Server exited gracefully", nil)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
