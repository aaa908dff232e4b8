package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/scanstock/backend/migrations"
	"go.uber.org/zap"
)

// Migrator moves the postgres inventory schema between versions
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// Source picks the migration files: the set compiled into the binary when dir
// is empty, otherwise the .sql files in dir.
func Source(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

// New binds a Migrator to an open postgres pool. Close releases the pool too.
func New(db *sql.DB, dir string, log *zap.Logger) (*Migrator, error) {
	src, err := iofs.New(Source(dir), ".")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	target, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("open migration target: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", target)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Migrator{m: m, log: log.Named("migrate")}, nil
}

// Up applies everything newer than the current version
func (r *Migrator) Up() error { return r.apply("up", r.m.Up) }

// Down reverts every applied version
func (r *Migrator) Down() error { return r.apply("down", r.m.Down) }

// Steps moves n versions, forward when n is positive
func (r *Migrator) Steps(n int) error {
	return r.apply(fmt.Sprintf("step %+d", n), func() error { return r.m.Steps(n) })
}

// GoTo moves to exactly version, in whichever direction that takes
func (r *Migrator) GoTo(version uint) error {
	return r.apply(fmt.Sprintf("goto %d", version), func() error { return r.m.Migrate(version) })
}

func (r *Migrator) apply(op string, step func() error) error {
	r.log.Debug("Migration starting", zap.String("op", op))
	switch err := step(); {
	case errors.Is(err, migrate.ErrNoChange):
		r.log.Info("Schema unchanged", zap.String("op", op))
		return nil
	case err != nil:
		return fmt.Errorf("%s: %w", op, err)
	}

	version, dirty, err := r.Version()
	if err != nil {
		return err
	}
	r.log.Info("Schema migrated", zap.String("op", op), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Version is the applied schema version; a fresh database reports 0.
func (r *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied and clean without running anything. It is
// the way out of a dirty state left by a failed migration.
func (r *Migrator) Force(version int) error {
	r.log.Warn("Forcing schema version", zap.Int("version", version))
	if err := r.m.Force(version); err != nil {
		return fmt.Errorf("force %d: %w", version, err)
	}
	return nil
}

// Drop removes the products and scan_records tables along with their data
func (r *Migrator) Drop() error {
	r.log.Warn("Dropping inventory schema")
	if err := r.m.Drop(); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	return nil
}

func (r *Migrator) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}
