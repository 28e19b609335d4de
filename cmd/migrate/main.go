package main

import (
	"github.com/clicktoassignment/backend/internal/config"
	"github.com/clicktoassignment/backend/internal/db"
	"github.com/clicktoassignment/backend/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Initialize("INFO", "")
		logger.Fatal("Failed to load configuration", map[string]interface{}{"error": err.Error()})
	}
	logger.Initialize(cfg.Log.Level, "")

	gdb, err := db.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}

	logger.Info("Running database migrations...", nil)
	if err := db.Migrate(gdb); err != nil {
		logger.Fatal("Migration failed", map[string]interface{}{"error": err.Error()})
	}
	logger.Info("Database migrations completed successfully", nil)
}
