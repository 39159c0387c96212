// Command migrate manages the marketplace database schema with
// golang-migrate. Applied versions live in the schema_migrations table.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const usage = `Usage: migrate [options] <command> [args]

Commands:
  up [N]       apply all pending migrations, or the next N
  down [N]     roll back all migrations, or the last N
  goto V       migrate up or down to version V
  force V      overwrite the recorded version without running anything
  version      print the current schema version
  drop         drop every table (asks for confirmation)
  create NAME  write a numbered up/down migration pair

The connection string comes from -dsn or the DATABASE_URL environment
variable. Individual DB_HOST / DB_PORT / DB_USER / DB_PASSWORD / DB_NAME /
DB_SSLMODE variables are used when neither is set.

Options:
`

func main() {
	var (
		dsn     = flag.String("dsn", "", "Postgres connection string (overrides DATABASE_URL)")
		dir     = flag.String("path", envOr("MIGRATIONS_PATH", "migrations"), "Migrations directory")
		timeout = flag.Duration("timeout", 5*time.Minute, "Connect and lock timeout")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	t := &tool{dsn: resolveDSN(*dsn), dir: *dir, timeout: *timeout}
	if err := t.run(args[0], args[1:]); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

// resolveDSN picks the connection string: explicit flag, then
// DATABASE_URL, then one assembled from the individual DB_* variables.
func resolveDSN(flagDSN string) string {
	if flagDSN != "" {
		return flagDSN
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		envOr("DB_USER", "postgres"),
		os.Getenv("DB_PASSWORD"),
		envOr("DB_HOST", "localhost"),
		envOr("DB_PORT", "5432"),
		envOr("DB_NAME", "jangteo_market"),
		envOr("DB_SSLMODE", "disable"))
}

type tool struct {
	dsn     string
	dir     string
	timeout time.Duration
}

func (t *tool) run(cmd string, args []string) error {
	switch cmd {
	case "create":
		if len(args) != 1 {
			return errors.New("create takes exactly one name")
		}
		return t.create(args[0])
	case "up":
		n, err := optionalSteps(args)
		if err != nil {
			return err
		}
		return t.withMigrate(func(m *migrate.Migrate) error {
			if n > 0 {
				return m.Steps(n)
			}
			return m.Up()
		})
	case "down":
		n, err := optionalSteps(args)
		if err != nil {
			return err
		}
		return t.withMigrate(func(m *migrate.Migrate) error {
			if n > 0 {
				return m.Steps(-n)
			}
			return m.Down()
		})
	case "goto":
		v, err := requiredVersion(args)
		if err != nil {
			return err
		}
		return t.withMigrate(func(m *migrate.Migrate) error {
			return m.Migrate(uint(v))
		})
	case "force":
		v, err := requiredVersion(args)
		if err != nil {
			return err
		}
		return t.withMigrate(func(m *migrate.Migrate) error {
			return m.Force(v)
		})
	case "version":
		return t.withMigrate(func(m *migrate.Migrate) error {
			v, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("no migrations applied")
				return nil
			}
			if err != nil {
				return err
			}
			if dirty {
				log.Printf("version %d (dirty)", v)
			} else {
				log.Printf("version %d", v)
			}
			return nil
		})
	case "drop":
		if !confirm("This drops EVERY table in the database. Type 'yes' to continue: ") {
			log.Println("aborted")
			return nil
		}
		return t.withMigrate((*migrate.Migrate).Drop)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// withMigrate opens the database, runs fn, and reports the version
// change. migrate.ErrNoChange is not an error for our purposes.
func (t *tool) withMigrate(fn func(*migrate.Migrate) error) error {
	m, err := t.open()
	if err != nil {
		return err
	}
	defer m.Close()

	before, _, _ := m.Version()
	if err := fn(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("nothing to do")
			return nil
		}
		return err
	}
	after, _, _ := m.Version()
	if before != after {
		log.Printf("schema version %d -> %d", before, after)
	}
	return nil
}

func (t *tool) open() (*migrate.Migrate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	db, err := sql.Open("pgx", t.dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres driver: %w", err)
	}

	abs, err := filepath.Abs(t.dir)
	if err != nil {
		return nil, fmt.Errorf("resolve migrations path: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+abs, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}
	m.LockTimeout = t.timeout
	return m, nil
}

// create writes a numbered up/down SQL pair into the migrations
// directory, continuing from the highest existing number.
func (t *tool) create(name string) error {
	next := 1
	entries, err := os.ReadDir(t.dir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range entries {
		var n int
		if _, err := fmt.Sscanf(e.Name(), "%d_", &n); err == nil && n >= next {
			next = n + 1
		}
	}

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return err
	}
	stamp := time.Now().Format(time.RFC3339)
	for _, suffix := range []string{"up", "down"} {
		path := filepath.Join(t.dir, fmt.Sprintf("%03d_%s.%s.sql", next, name, suffix))
		body := fmt.Sprintf("-- %s (%s)\n-- created %s\n", name, suffix, stamp)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return err
		}
		log.Printf("created %s", path)
	}
	return nil
}

func optionalSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid step count %q", args[0])
	}
	return n, nil
}

func requiredVersion(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("a version number is required")
	}
	v, err := strconv.Atoi(args[0])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version %q", args[0])
	}
	return v, nil
}

func confirm(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil {
		return false
	}
	return answer == "yes"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
