package main

import (
	"log"

	"github.com/civicwatch/backend/internal/config"
	"github.com/civicwatch/backend/internal/db"
	"github.com/civicwatch/backend/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Initialize(cfg.LogLevel, cfg.LogDir)

	conn, err := db.Connect(cfg.DSN(), false)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(conn); err != nil {
		log.Fatalf("Schema migration failed: %v", err)
	}

	log.Println("Applying SQL migrations...")
	if err := db.ApplySQLMigrations(cfg.DSN()); err != nil {
		log.Fatalf("SQL migration failed: %v", err)
	}

	log.Println("✅ Database migrations completed successfully!")
}
