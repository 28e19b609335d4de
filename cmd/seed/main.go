package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/clicktoassignment/backend/internal/config"
	"github.com/clicktoassignment/backend/internal/db"
	"github.com/clicktoassignment/backend/internal/logger"
	"github.com/clicktoassignment/backend/internal/models"
	"github.com/clicktoassignment/backend/internal/routes"
	"github.com/clicktoassignment/backend/internal/services"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UserData represents the structure of users in the seed file
type UserData struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	FullName string          `json:"fullName"`
	Role     models.UserRole `json:"role"`
}

// SeedData represents the structure of the seed file
type SeedData struct {
	Users    []UserData                 `json:"users"`
	Holidays []services.HolidayInput    `json:"holidays"`
	Coupons  []services.CouponInput     `json:"coupons"`
	Costs    map[string]decimal.Decimal `json:"costs"`
}

func main() {
	path := flag.String("file", "data/seed.json", "seed data file")
	flag.Parse()

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
	if err := db.Migrate(gdb); err != nil {
		logger.Fatal("Migration failed", map[string]interface{}{"error": err.Error()})
	}

	data, err := loadSeed(*path)
	if err != nil {
		logger.Fatal("Failed to read seed file", map[string]interface{}{"file": *path, "error": err.Error()})
	}

	node, err := services.NewSnowflakeNode(cfg.Snowflake.Node)
	if err != nil {
		logger.Fatal("Failed to create job number generator", map[string]interface{}{"error": err.Error()})
	}
	svc := routes.NewServices(gdb, cfg, node)
	ctx := context.Background()

	seedCosts(ctx, svc, data.Costs)
	adminID := seedUsers(ctx, gdb, svc, data.Users)
	seedHolidays(ctx, svc, data.Holidays)
	seedCoupons(ctx, svc, data.Coupons, adminID)

	logger.Info("Database seeding completed", nil)
}

func loadSeed(path string) (*SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data SeedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("invalid seed json: %w", err)
	}
	return &data, nil
}

// seedUsers creates missing users and returns the id of the first super admin.
func seedUsers(ctx context.Context, gdb *gorm.DB, svc *routes.Services, users []UserData) *uint {
	var adminID *uint
	for _, u := range users {
		if !u.Role.Valid() {
			logger.Warn("Skipping user with unknown role", map[string]interface{}{"username": u.Username, "role": u.Role})
			continue
		}

		var user models.User
		err := gdb.WithContext(ctx).Where("username = ?", u.Username).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{Username: u.Username, Email: u.Email, FullName: u.FullName, Role: u.Role, IsActive: true}
			if err := gdb.WithContext(ctx).Create(&user).Error; err != nil {
				logger.Error("Failed to create user", map[string]interface{}{"username": u.Username, "error": err.Error()})
				continue
			}
			logger.Info("Created user", map[string]interface{}{"username": user.Username, "role": user.Role})
		case err != nil:
			logger.Error("Failed to look up user", map[string]interface{}{"username": u.Username, "error": err.Error()})
			continue
		default:
			logger.Info("User already exists", map[string]interface{}{"username": user.Username})
		}

		if user.Role.IsMetered() {
			if _, err := svc.Ledger.EnsureAccount(ctx, user.ID, services.WelcomeBonusReason); err != nil {
				logger.Error("Failed to open gems account", map[string]interface{}{"username": user.Username, "error": err.Error()})
			}
		}
		if adminID == nil && user.Role == models.RoleSuperAdmin {
			id := user.ID
			adminID = &id
		}
	}
	return adminID
}

func seedCosts(ctx context.Context, svc *routes.Services, costs map[string]decimal.Decimal) {
	for key, cost := range costs {
		if _, err := svc.Pricing.SetCost(ctx, key, cost); err != nil {
			logger.Warn("Cost rule not set", map[string]interface{}{"key": key, "error": err.Error()})
			continue
		}
		logger.Info("Set cost rule", map[string]interface{}{"key": key, "cost": cost.String()})
	}
}

func seedHolidays(ctx context.Context, svc *routes.Services, holidays []services.HolidayInput) {
	for _, h := range holidays {
		if _, err := svc.Jobs.AddHoliday(ctx, h); err != nil {
			logger.Warn("Holiday not added", map[string]interface{}{"date": h.Date, "error": err.Error()})
			continue
		}
		logger.Info("Added holiday", map[string]interface{}{"date": h.Date, "name": h.Name})
	}
}

func seedCoupons(ctx context.Context, svc *routes.Services, coupons []services.CouponInput, adminID *uint) {
	for _, c := range coupons {
		if _, err := svc.Coupons.CreateCoupon(ctx, c, adminID); err != nil {
			logger.Warn("Coupon not created", map[string]interface{}{"code": c.Code, "error": err.Error()})
			continue
		}
		logger.Info("Created coupon", map[string]interface{}{"code": c.Code})
	}
}
