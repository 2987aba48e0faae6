package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/tokenvault/internal/app"
	"github.com/ericfisherdev/tokenvault/internal/config"
)

func main() {
	os.Exit(check())
}

// check resolves credentials from the environment and pings the token store.
// It returns the process exit code for container health probes.
func check() int {
	cfg, err := config.Load(config.Sources{Environ: os.Environ})
	if err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	application, err := app.New(ctx, cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		return 1
	}
	defer func() { _ = application.Close() }()

	if err := application.Tokens.Ping(ctx); err != nil {
		return 1
	}

	return 0
}
