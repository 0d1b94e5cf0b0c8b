package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

// Run is the CLI entrypoint used by cmd/loveludo. It returns an error
// instead of calling os.Exit to keep defers effective.
func Run() error {
	// A missing .env is normal outside dev.
	_ = godotenv.Load()

	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}

	return a.Run(ctx)
}
