package db

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sort"

	"github.com/civicwatch/backend/internal/db/migrations"
	"github.com/civicwatch/backend/internal/logger"
	_ "github.com/lib/pq"
)

// ApplySQLMigrations runs the embedded .sql files in lexical order over a
// plain database/sql connection. Every statement in them is idempotent.
func ApplySQLMigrations(dsn string) error {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn("Failed to close migration connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	if err := conn.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	names, err := migrationFiles()
	if err != nil {
		return err
	}

	for _, name := range names {
		body, err := migrations.Files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if _, err := conn.Exec(string(body)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", name, err)
		}
		logger.Info("Applied SQL migration", map[string]interface{}{"file": name})
	}
	return nil
}

func migrationFiles() ([]string, error) {
	names, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
