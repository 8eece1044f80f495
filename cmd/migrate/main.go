package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/fixtures"
	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/seed"
	"github.com/stitts-dev/fantasy-rugby/pkg/config"
	"github.com/stitts-dev/fantasy-rugby/pkg/database"
	"github.com/stitts-dev/fantasy-rugby/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: migrate [up|down|seed]")
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	command := os.Args[1]

	switch command {
	case "up":
		if err := db.Migrate(models.All()...); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Info("Migrations completed successfully")

	case "down":
		if err := dropTables(db); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Info("Tables dropped successfully")

	case "seed":
		if err := db.Migrate(models.All()...); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		round := fixtures.Default().CurrentRound(cfg.CurrentSeason)
		if round == 0 {
			round = 1
		}
		if err := seed.Load(context.Background(), db, cfg.CurrentSeason, round, log); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		log.Info("Data seeded successfully")

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

// dropTables drops children before parents.
func dropTables(db *database.DB) error {
	all := models.All()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("failed to drop table for %T: %w", all[i], err)
		}
	}
	return nil
}
