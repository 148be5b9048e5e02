// Package dbtest opens throwaway SQLite databases with the application schema
// for use in tests.
package dbtest

import (
	"testing"

	"github.com/civicwatch/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens an in-memory SQLite database and migrates every model. The pool
// is pinned to one connection so all queries see the same memory database.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("could not open test database: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("could not get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}
	return conn
}

// CreateUser inserts a user with the given role and returns it.
func CreateUser(t *testing.T, conn *gorm.DB, email string, role models.UserRole) models.User {
	t.Helper()

	user := models.User{Name: email, Email: email, Password: "x", Role: role}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return user
}
