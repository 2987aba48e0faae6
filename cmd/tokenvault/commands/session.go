package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/ericfisherdev/tokenvault/internal/app"
	"github.com/ericfisherdev/tokenvault/internal/config"
	"github.com/ericfisherdev/tokenvault/internal/observability"
)

// session holds everything a command needs for one invocation.
type session struct {
	cfg      *config.Config
	app      *app.App
	logger   *slog.Logger
	shutdown observability.ShutdownFunc
}

// environ is swapped in tests to keep the host environment out of config loading.
var environ = os.Environ

// openSession loads configuration, installs logging and wires the token service.
func openSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	cfg, err := config.Load(config.Sources{
		File:      cmd.String("config"),
		Environ:   environ,
		Overrides: extractAndTransformFlags(cmd),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	logger := slog.Default().With("run_id", uuid.NewString())

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("failed to create app: %w", err)
	}

	return &session{cfg: cfg, app: application, logger: logger, shutdown: shutdown}, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.app.Close(); err != nil {
		slog.ErrorContext(ctx, "error closing token store", "error", err)
	}
	if err := s.shutdown(context.WithoutCancel(ctx)); err != nil {
		slog.ErrorContext(ctx, "error flushing logs", "error", err)
	}
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Includes parent flags. Examples: --database--dialect → database.dialect, --log-level → log_level
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	// FlagNames() includes flags from parent commands (via lineage)
	for _, name := range cmd.FlagNames() {
		// Skip unset flags to preserve precedence from earlier config sources
		if name == "config" || !cmd.IsSet(name) {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}
