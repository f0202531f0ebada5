// Package dbtest opens throwaway SQLite databases with the full schema for tests.
package dbtest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nurpe/subcontract-billing/internal/db"
	"github.com/nurpe/subcontract-billing/internal/model"
)

// Open returns an in-memory database migrated with every entity. A single
// connection keeps the in-memory database alive and serializes writers.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	database, err := gorm.Open(sqlite.Open("file::memory:"), db.Options())
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(model.All()...))
	return database
}
