//go:build integration

// Package integration runs the inventory store, the schema migrations and the
// HTTP shell against real PostgreSQL and Redis containers started by testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/scanstock/backend/internal/infrastructure/config"
	"github.com/scanstock/backend/internal/infrastructure/logger"
	"github.com/scanstock/backend/internal/infrastructure/migration"
	"github.com/scanstock/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormlogger "gorm.io/gorm/logger"
)

// pgServer is one running postgres container and the config that reaches it
type pgServer struct {
	container *tcpostgres.PostgresContainer
	cfg       config.DatabaseConfig
}

func startServer(ctx context.Context, dbName string) (*pgServer, error) {
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername("scanstock"),
		tcpostgres.WithPassword("scanstock"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		return nil, err
	}

	host, err := container.Host(ctx)
	if err == nil {
		var port interface{ Int() int }
		if port, err = container.MappedPort(ctx, "5432/tcp"); err == nil {
			return &pgServer{container: container, cfg: config.DatabaseConfig{
				Driver:       config.DriverPostgres,
				Host:         host,
				Port:         port.Int(),
				User:         "scanstock",
				Password:     "scanstock",
				DBName:       dbName,
				SSLMode:      "disable",
				MaxOpenConns: 5,
				MaxIdleConns: 2,
			}}, nil
		}
	}
	_ = container.Terminate(ctx)
	return nil, err
}

func (s *pgServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = s.container.Terminate(ctx)
}

// open connects through the same constructor the server uses. Set TEST_DB_DEBUG
// to see every statement in the test log.
func (s *pgServer) open(t *testing.T) *TestDB {
	t.Helper()

	var opts []persistence.Option
	if os.Getenv("TEST_DB_DEBUG") != "" {
		opts = append(opts, persistence.WithLogger(logger.NewGormLogger(zaptest.NewLogger(t), gormlogger.Info)))
	}
	db, err := persistence.NewDatabase(&s.cfg, opts...)
	require.NoError(t, err, "connect to %s", s.cfg.DBName)

	raw, err := db.DB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &TestDB{Database: db, SQL: raw}
}

// migrate brings the schema to the newest embedded version. The migrator is
// left open since closing it closes the pool underneath.
func (tdb *TestDB) migrate(t *testing.T) {
	t.Helper()
	m, err := migration.New(tdb.SQL, "", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
}

// TestDB is a migrated postgres store
type TestDB struct {
	*persistence.Database
	SQL *sql.DB
}

var sharedPG struct {
	sync.Mutex
	srv *pgServer
}

// NewTestDB starts a private container. Migration tests use it so they can
// move the schema without disturbing the rest of the package.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	srv, err := startServer(context.Background(), "scanstock_test")
	require.NoError(t, err, "start postgres")
	t.Cleanup(srv.stop)

	tdb := srv.open(t)
	tdb.migrate(t)
	return tdb
}

// NewSharedTestDB connects to the package container, starting and migrating it
// on first use, and empties every table before handing it out.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()

	sharedPG.Lock()
	defer sharedPG.Unlock()

	fresh := sharedPG.srv == nil
	if fresh {
		srv, err := startServer(context.Background(), "scanstock_shared_test")
		require.NoError(t, err, "start shared postgres")
		sharedPG.srv = srv
	}

	tdb := sharedPG.srv.open(t)
	if fresh {
		tdb.migrate(t)
	}
	tdb.truncate(t)
	return tdb
}

func (tdb *TestDB) truncate(t *testing.T) {
	t.Helper()
	err := tdb.DB.Exec("TRUNCATE TABLE products, scan_records RESTART IDENTITY CASCADE").Error
	require.NoError(t, err)
}

// CleanupSharedContainer stops the package container. TestMain calls it.
func CleanupSharedContainer() {
	sharedPG.Lock()
	defer sharedPG.Unlock()
	if sharedPG.srv != nil {
		sharedPG.srv.stop()
		sharedPG.srv = nil
	}
}
