package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/scanstock/backend/internal/infrastructure/config"
	"github.com/scanstock/backend/internal/infrastructure/logger"
	"github.com/scanstock/backend/internal/infrastructure/migration"
	"go.uber.org/zap"
)

var errUsage = errors.New("usage")

// env carries what every command needs
type env struct {
	log  *zap.Logger
	dir  string
	args []string
}

// command is one subcommand. Commands with a schema step get an open Migrator.
type command struct {
	usage   string
	help    string
	offline func(e env) error
	online  func(e env, m *migration.Migrator) error
}

var commands = map[string]command{
	"up":      {help: "Apply all pending migrations", online: func(e env, m *migration.Migrator) error { return m.Up() }},
	"down":    {help: "Roll back all migrations", online: func(e env, m *migration.Migrator) error { return m.Down() }},
	"step":    {usage: "<n>", help: "Move n versions (negative rolls back)", online: stepCmd},
	"goto":    {usage: "<version>", help: "Migrate to a specific version", online: gotoCmd},
	"version": {help: "Show the applied version", online: versionCmd},
	"force":   {usage: "<version>", help: "Mark a version applied and clean", online: forceCmd},
	"drop":    {usage: "-confirm", help: "Drop the products and scan_records tables", online: dropCmd},
	"create":  {usage: "<name> [desc]", help: "Write a new up/down file pair", offline: createCmd},
	"list":    {help: "List available migrations", offline: listCmd},
}

var order = []string{"up", "down", "step", "goto", "version", "force", "drop", "create", "list"}

func main() {
	dir := flag.String("path", "", "Migrations directory (default: schema embedded in the binary)")
	level := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	switch err := run(env{log: log, dir: *dir, args: flag.Args()}); {
	case errors.Is(err, errUsage):
		log.Error(err.Error())
		usage()
		os.Exit(2)
	case err != nil:
		log.Error("Migration command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		os.Exit(1)
	}
}

func run(e env) error {
	name := e.args[0]
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
	if e.dir != "" {
		abs, err := filepath.Abs(e.dir)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", e.dir, err)
		}
		e.dir = abs
	}
	e.log.Debug("Running migration command", zap.String("command", name), zap.String("path", e.dir))

	if cmd.offline != nil {
		return cmd.offline(e)
	}

	m, err := connect(e)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return cmd.online(e, m)
}

// connect opens the configured postgres database. The Migrator owns the pool afterwards.
func connect(e env) (*migration.Migrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("versioned migrations target postgres; driver %q uses auto-migrate on server start", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err == nil {
		err = db.Ping()
	}
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("connect to %s: %w", cfg.Database.Host, err)
	}

	m, err := migration.New(db, e.dir, e.log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// intArg parses the first argument after the command name
func intArg(e env) (int, error) {
	if len(e.args) < 2 {
		return 0, fmt.Errorf("%w: migrate %s %s", errUsage, e.args[0], commands[e.args[0]].usage)
	}
	n, err := strconv.Atoi(e.args[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, e.args[1])
	}
	return n, nil
}

func stepCmd(e env, m *migration.Migrator) error {
	n, err := intArg(e)
	if err != nil {
		return err
	}
	return m.Steps(n)
}

func gotoCmd(e env, m *migration.Migrator) error {
	v, err := intArg(e)
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("%w: version must not be negative", errUsage)
	}
	return m.GoTo(uint(v))
}

func forceCmd(e env, m *migration.Migrator) error {
	v, err := intArg(e)
	if err != nil {
		return err
	}
	return m.Force(v)
}

func versionCmd(e env, m *migration.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	e.log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func dropCmd(e env, m *migration.Migrator) error {
	for _, a := range e.args[1:] {
		if strings.TrimLeft(a, "-") == "confirm" {
			return m.Drop()
		}
	}
	return fmt.Errorf("%w: drop removes the products and scan history, rerun as 'migrate drop -confirm'", errUsage)
}

func createCmd(e env) error {
	if len(e.args) < 2 {
		return fmt.Errorf("%w: migrate create <name> [desc]", errUsage)
	}
	dir := e.dir
	if dir == "" {
		dir = "migrations"
	}
	var desc string
	if len(e.args) > 2 {
		desc = e.args[2]
	}
	mf, err := migration.CreateMigration(dir, e.args[1], desc)
	if err != nil {
		return err
	}
	e.log.Info("Migration created", zap.String("up", mf.UpPath), zap.String("down", mf.DownPath))
	return nil
}

func listCmd(e env) error {
	names, err := migration.ListMigrations(migration.Source(e.dir))
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	e.log.Debug("Listed migrations", zap.Int("count", len(names)))
	return nil
}

func usage() {
	var b strings.Builder
	b.WriteString("scanstock schema migrations\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:\n")
	for _, name := range order {
		c := commands[name]
		fmt.Fprintf(&b, "  %-22s %s\n", strings.TrimSpace(name+" "+c.usage), c.help)
	}
	b.WriteString("\nFlags:\n")
	fmt.Fprint(os.Stdout, b.String())
	flag.PrintDefaults()
	fmt.Println("\nThe database comes from config.toml and SCANSTOCK_DATABASE_* variables.")
}
