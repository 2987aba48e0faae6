package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:   "schema",
		Usage:  "create the sellers and advertisers tables if they do not exist",
		Action: schemaAction,
	}
}

func schemaAction(ctx context.Context, cmd *cli.Command) error {
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if err := s.app.Tokens.Bootstrap(ctx); err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, "Sellers and advertisers tables ensured to exist.")
	return err
}

func pingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "check that database credentials resolve and the store answers",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			if err := s.app.Tokens.Ping(ctx); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.Root().Writer, "ok")
			return err
		},
	}
}
