package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/ericfisherdev/tokenvault/internal/config"
)

// Streams are the standard streams commands read from and write to.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string, streams Streams) error {
	return newRootCommand(streams).Run(ctx, args)
}

func newRootCommand(streams Streams) *cli.Command {
	return &cli.Command{
		Name:      "tokenvault",
		Usage:     "Store and retrieve refresh tokens for selling partners and advertisers",
		Reader:    streams.In,
		Writer:    streams.Out,
		ErrWriter: streams.Err,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otel)",
				Value: string(config.DefaultLogFormat),
			},
			&cli.StringFlag{
				Name:  "database--dialect",
				Usage: "database dialect (postgres|sqlite)",
				Value: config.DefaultDialect,
			},
			&cli.StringFlag{
				Name:  "database--name",
				Usage: "database name, or file path for sqlite",
			},
			&cli.StringFlag{
				Name:  "database--credentials--source",
				Usage: "credential source (static|secrets)",
				Value: string(config.DefaultCredentialSource),
			},
		},
		Commands: []*cli.Command{
			schemaCommand(),
			tokenCommand(),
			secretCommand(),
			pingCommand(),
		},
	}
}
