package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/config"
	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/database"
	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/telemetry"
)

const defaultMigrationsDir = "migrations"

func main() {
	var (
		action     = flag.String("action", "up", "Migration action: up, down, version")
		steps      = flag.Int("steps", 0, "Number of migrations to apply or revert (0 = all)")
		dir        = flag.String("dir", defaultMigrationsDir, "Directory holding the migration files")
		configPath = flag.String("config", "", "Path to configuration file")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*action, *steps, *dir, cfg.Database.URL, logger); err != nil {
		logger.Error("migration failed", zap.String("action", *action), zap.Error(err))
		os.Exit(1)
	}
}

func run(action string, steps int, dir, databaseURL string, logger *zap.Logger) error {
	if databaseURL == "" {
		return fmt.Errorf("database.url is required")
	}
	if steps < 0 {
		return fmt.Errorf("steps must not be negative, got %d", steps)
	}

	m, err := database.NewMigrator(databaseURL, dir)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("failed to close migrator", zap.Error(err))
		}
	}()

	switch action {
	case "up":
		err = m.Up(steps)
	case "down":
		err = m.Down(steps)
	case "version":
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logger.Info("migrations complete",
		zap.String("action", action),
		zap.Int("steps", steps),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}
