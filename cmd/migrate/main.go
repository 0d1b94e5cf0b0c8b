// migrate applies the ludo schema from embedded SQL: go run ./cmd/migrate
// [-direction up|down].
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	"loveludo/cmd/internal/app"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	_ = godotenv.Load()
	cfg := app.LoadConfig()
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "LUDO_DATABASE_URL is not set")
		os.Exit(1)
	}

	if err := run(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(dsn, direction string) error {
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
