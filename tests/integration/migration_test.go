//go:build integration

package integration

import (
	"testing"

	"github.com/scanstock/backend/internal/infrastructure/migration"
	"github.com/scanstock/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrations_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)

	// Not closed: Close would close testDB.SQL as well
	m, err := migration.New(testDB.SQL, "", zap.NewNop())
	require.NoError(t, err)

	files, err := migration.ListMigrations(migrations.FS)
	require.NoError(t, err)
	latest := uint(len(files))

	hasTable := func(name string) bool {
		return testDB.DB.Migrator().HasTable(name)
	}

	t.Run("schema is at the latest version", func(t *testing.T) {
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, latest, version)
		assert.False(t, dirty)
		assert.True(t, hasTable("products"))
		assert.True(t, hasTable("scan_records"))
	})

	t.Run("up again is a no-op", func(t *testing.T) {
		require.NoError(t, m.Up())
	})

	t.Run("step back drops the audit trail only", func(t *testing.T) {
		require.NoError(t, m.Steps(-1))

		version, _, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, latest-1, version)
		assert.True(t, hasTable("products"))
		assert.False(t, hasTable("scan_records"))
	})

	t.Run("down removes everything", func(t *testing.T) {
		require.NoError(t, m.Down())

		version, _, err := m.Version()
		require.NoError(t, err)
		assert.Zero(t, version)
		assert.False(t, hasTable("products"))
	})

	t.Run("goto restores a version", func(t *testing.T) {
		require.NoError(t, m.GoTo(1))
		assert.True(t, hasTable("products"))
		assert.False(t, hasTable("scan_records"))

		require.NoError(t, m.Up())
		assert.True(t, hasTable("scan_records"))
	})

	t.Run("product constraints are in place", func(t *testing.T) {
		err := testDB.DB.Exec(`INSERT INTO products (barcode, name, stock, price) VALUES ('1', 'x', -1, 0)`).Error
		assert.Error(t, err)
	})
}
