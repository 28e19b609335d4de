// Command devtoken prints a signed bearer token for a local user. Login is
// handled by the upstream identity provider; this exists for development and
// the health-test probe.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/clicktoassignment/backend/internal/config"
	"github.com/clicktoassignment/backend/internal/db"
	"github.com/clicktoassignment/backend/internal/logger"
	"github.com/clicktoassignment/backend/internal/middleware"
	"github.com/clicktoassignment/backend/internal/models"
)

func main() {
	username := flag.String("user", "admin", "username to issue the token for")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to jwt.expiration_hours)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Initialize("ERROR", "")

	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "jwt.secret is empty; set JWT_SECRET")
		os.Exit(1)
	}

	gdb, err := db.Connect(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	var user models.User
	if err := gdb.Where("username = ?", *username).First(&user).Error; err != nil {
		fmt.Fprintf(os.Stderr, "user %q not found: %v\n", *username, err)
		os.Exit(1)
	}
	if !user.IsActive {
		fmt.Fprintf(os.Stderr, "user %q is inactive\n", *username)
		os.Exit(1)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = time.Duration(cfg.JWT.ExpirationHours) * time.Hour
	}
	token, err := middleware.SignToken(cfg.JWT.Secret, user.ID, user.Role, lifetime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
