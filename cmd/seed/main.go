// Command seed creates the first admin account, which then creates everyone else through the API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"alcyxob/coach-sessions/internal/config"
	"alcyxob/coach-sessions/internal/logger"
	"alcyxob/coach-sessions/internal/repository/mongo"
	"alcyxob/coach-sessions/internal/service"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.StringP("config", "c", ".", "directory containing config.yaml")
	name := flag.String("name", "Administrator", "admin display name")
	email := flag.String("email", "", "admin email (required)")
	password := flag.String("password", "", "admin password, at least 8 characters (or SEED_ADMIN_PASSWORD)")
	ensureIndexes := flag.Bool("ensure-indexes", true, "create collection indexes before seeding")
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("SEED_ADMIN_PASSWORD")
	}
	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := seed(ctx, cfg, *ensureIndexes, *name, *email, *password, logg); err != nil {
		logg.Error("seeding failed", zap.Error(err))
		cancel()
		os.Exit(1)
	}
}

func seed(ctx context.Context, cfg *config.Config, ensureIndexes bool, name, email, password string, logg *zap.Logger) error {
	dbClient, err := mongo.ConnectDB(ctx, cfg.Database.URI)
	if err != nil {
		return err
	}
	defer func() {
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logg.Warn("failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)

	if ensureIndexes {
		if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
			return err
		}
	}

	admin, err := service.BootstrapAdmin(ctx, mongo.NewMongoUserRepository(appDB), name, email, password)
	if errors.Is(err, service.ErrEmailTaken) {
		logg.Info("admin already exists, nothing to do", zap.String("email", email))
		return nil
	}
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	logg.Info("admin created", zap.String("id", admin.ID.Hex()), zap.String("email", admin.Email))
	return nil
}
