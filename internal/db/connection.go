package db

import (
	"fmt"
	"time"

	"github.com/clicktoassignment/backend/internal/config"
	"github.com/clicktoassignment/backend/internal/logger"
	"github.com/clicktoassignment/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the Postgres connection described by cfg and stores it in DB.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Error),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	DB = gdb
	logger.Info("Database connected successfully", map[string]interface{}{
		"host": cfg.Host,
		"name": cfg.Name,
	})
	return gdb, nil
}

// Migrate creates or updates every table and the supplementary indexes.
func Migrate(gdb *gorm.DB) error {
	for _, m := range models.All() {
		if err := gdb.AutoMigrate(m); err != nil {
			return fmt.Errorf("migration of %T failed: %w", m, err)
		}
	}

	// Coupon codes match case-insensitively.
	if err := gdb.Exec(`create unique index if not exists uq_coupons_code_lower on coupons (lower(code));`).Error; err != nil {
		return fmt.Errorf("failed to create coupon code index: %w", err)
	}
	if err := gdb.Exec(`create index if not exists idx_section_history_section_created on job_section_history (section_id, created_at);`).Error; err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}

	if gdb.Dialector.Name() == "postgres" {
		if err := gdb.Exec(`create index if not exists idx_coupons_tasks_gin on coupons using gin (applicable_tasks);`).Error; err != nil {
			return fmt.Errorf("failed to create coupon task index: %w", err)
		}
		if err := gdb.Exec(`create index if not exists idx_jobs_active on jobs (created_by_id) where is_deleted = false;`).Error; err != nil {
			return fmt.Errorf("failed to create active jobs index: %w", err)
		}
	}

	logger.Info("Database migrations completed", map[string]interface{}{
		"models": len(models.All()),
	})
	return nil
}

// Ping checks connectivity of gdb.
func Ping(gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("database connection not initialized")
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
