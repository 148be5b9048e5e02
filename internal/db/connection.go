package db

import (
	"fmt"

	"github.com/civicwatch/backend/internal/logger"
	"github.com/civicwatch/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the Postgres connection described by dsn.
func Connect(dsn string, debug bool) (*gorm.DB, error) {
	level := gormlogger.Error
	if debug {
		level = gormlogger.Info
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Database connected successfully", nil)
	return conn, nil
}

// AutoMigrate creates or updates every table the application uses.
func AutoMigrate(conn *gorm.DB) error {
	for _, model := range models.All() {
		if err := conn.AutoMigrate(model); err != nil {
			return fmt.Errorf("migration of %T failed: %w", model, err)
		}
		logger.Debug("Table migrated", map[string]interface{}{"model": fmt.Sprintf("%T", model)})
	}

	logger.Info("All database migrations completed successfully", nil)
	return nil
}

// Ping checks that the underlying connection pool can reach the database.
func Ping(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("database connection not initialized")
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
