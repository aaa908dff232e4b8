package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/scanstock/backend/internal/infrastructure/config"
	"github.com/scanstock/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// mockedStore puts a Database in front of sqlmock speaking postgres
func mockedStore(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)
	return NewDatabaseFromGorm(gdb, config.DriverPostgres), mock
}

// sqliteStore is a migrated in-memory station database
func sqliteStore(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDatabase_StationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.db")
	db, err := NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: path, MaxOpenConns: 10})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, config.DriverSQLite, db.Driver())
	require.NoError(t, db.AutoMigrate())
	assert.True(t, db.DB.Migrator().HasTable(&models.ProductModel{}))
	assert.True(t, db.DB.Migrator().HasTable(&models.ScanRecordModel{}))

	// A single writer regardless of the configured pool size
	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)
	assert.NoError(t, db.Ping(context.Background()))

	require.NoError(t, db.DB.Create(&models.ProductModel{Barcode: "PART/42 A", Name: "Hex Bolt"}).Error)
	require.NoError(t, db.Close())

	reopened, err := NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	var count int64
	require.NoError(t, reopened.DB.Model(&models.ProductModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported database driver "oracle"`)
}

func TestNewDatabase_UnreachablePostgres(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{
		Driver:  config.DriverPostgres,
		Host:    "127.0.0.1",
		Port:    1,
		User:    "scan",
		DBName:  "inventory",
		SSLMode: "disable",
	})
	require.Error(t, err)
}

func TestDatabase_Ping(t *testing.T) {
	db, mock := mockedStore(t)
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	assert.NoError(t, db.Ping(context.Background()))
	err := db.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock := mockedStore(t)
	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
