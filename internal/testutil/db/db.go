// Package db provides database utilities for testing
package db

import (
	"database/sql"
	"fmt"
	"testing"

	"authguard/internal/config"
	"authguard/internal/database"

	"github.com/stretchr/testify/require"
)

// ResetSchema recreates the public schema, removing the application tables
// and the schema_migrations table kept by migrate
func ResetSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DROP SCHEMA IF EXISTS public CASCADE`,
		`CREATE SCHEMA public`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to reset schema: %w", err)
		}
	}
	return tx.Commit()
}

// SetupTestDB connects to the test database and migrates a fresh schema.
// The schema is reset again and the connection closed when the test ends.
func SetupTestDB(t *testing.T, cfg *config.DatabaseConfig) *sql.DB {
	t.Helper()

	db, err := database.Connect(*cfg)
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, ResetSchema(db), "Failed to reset test database")

	var tables int
	err = db.QueryRow(`SELECT COUNT(*) FROM pg_tables WHERE schemaname = 'public'`).Scan(&tables)
	require.NoError(t, err, "Failed to count tables")
	require.Zero(t, tables, "Database should be empty before running migrations")

	require.NoError(t, database.RunMigrations(*cfg), "Failed to run migrations")

	t.Cleanup(func() {
		if err := ResetSchema(db); err != nil {
			t.Errorf("Failed to reset test database: %v", err)
		}
		db.Close()
	})
	return db
}
