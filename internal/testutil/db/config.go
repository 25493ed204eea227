package db

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"authguard/internal/config"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

// ProjectRoot returns the absolute path of the module root
func ProjectRoot(t *testing.T) string {
	t.Helper()

	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")

	// three levels up from internal/testutil/db
	root, err := filepath.Abs(filepath.Join(filepath.Dir(filename), "..", "..", ".."))
	require.NoError(t, err, "Failed to get absolute project root path")
	return root
}

// LoadTestConfig loads .env.test from the project root. Tests that need a
// real database are skipped when the file is missing.
func LoadTestConfig(t *testing.T) *config.Config {
	t.Helper()

	root := ProjectRoot(t)
	envFile := filepath.Join(root, ".env.test")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		t.Skip("skipping database test: .env.test not found")
	}

	err := godotenv.Load(envFile)
	require.NoError(t, err, "Failed to load .env.test file")

	cfg := config.Default()
	err = cfg.LoadFromEnv()
	require.NoError(t, err, "Failed to load config")

	// Only override migrations path to ensure it's absolute
	cfg.Database.MigrationsPath = filepath.Join(root, "migrations")

	return cfg
}
