package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ericfisherdev/tokenvault/internal/adapter/driven/secrets"
	"github.com/ericfisherdev/tokenvault/internal/application"
	"github.com/ericfisherdev/tokenvault/internal/config"
)

func secretCommand() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "manage the database credential secret",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "store a JSON credential payload in the OS keyring (read from stdin)",
				ArgsUsage: "[secret-name]",
				Action:    secretSetAction,
			},
		},
	}
}

func secretSetAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(config.Sources{
		File:      cmd.String("config"),
		Environ:   environ,
		Overrides: extractAndTransformFlags(cmd),
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	service := cfg.Database.Credentials.KeyringService
	if service == "" {
		service = config.DefaultKeyringService
	}
	name := cmd.Args().First()
	if name == "" {
		name = cfg.Database.Credentials.SecretName
	}
	if name == "" {
		name = config.DefaultSecretName
	}

	payload, err := readSecret(cmd, "Credential JSON: ")
	if err != nil {
		return err
	}
	if payload == "" {
		return errors.New("credential payload is empty")
	}

	// Reject payloads the resolver would refuse later.
	if _, err := application.ParseDBSecret(name, payload); err != nil {
		return err
	}

	source, err := secrets.NewKeyringSource(service)
	if err != nil {
		return err
	}
	if err := source.Put(ctx, name, payload); err != nil {
		return fmt.Errorf("store secret in keyring: %w", err)
	}

	_, err = fmt.Fprintf(cmd.Root().Writer, "Stored secret %s in keyring service %s.\n", name, service)
	return err
}
