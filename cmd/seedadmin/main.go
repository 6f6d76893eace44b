// Command seedadmin creates the admin account, or promotes and resets an
// existing account with the same email.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Batpurev0828/qbtusul/internal/auth"
	"github.com/Batpurev0828/qbtusul/internal/config"
	"github.com/Batpurev0828/qbtusul/internal/db"
	"github.com/Batpurev0828/qbtusul/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	email := pflag.String("email", firstNonEmpty(cfg.AdminEmail, "admin@gee.mn"), "admin email")
	password := pflag.String("password", cfg.AdminPassword, "admin password (or ADMIN_PASSWORD)")
	name := pflag.String("name", cfg.AdminName, "display name")
	pflag.Parse()

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if *password == "" {
		log.Fatal("a password is required: pass --password or set ADMIN_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer dbh.Close()

	svc := auth.NewService(auth.NewSQLUsers(dbh), cfg.AuthSecret, auth.WithLogger(log))
	u, created, err := svc.EnsureAdmin(ctx, *name, *email, *password)
	if err != nil {
		log.Fatal("seed admin failed", zap.Error(err))
	}
	if created {
		log.Info("admin user created", zap.String("email", u.Email))
	} else {
		log.Info("existing user promoted to admin", zap.String("email", u.Email))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
