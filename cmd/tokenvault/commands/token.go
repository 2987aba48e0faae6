package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/ericfisherdev/tokenvault/internal/app"
	"github.com/ericfisherdev/tokenvault/internal/application"
	"github.com/ericfisherdev/tokenvault/internal/domain/model"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "store and fetch refresh tokens",
		Commands: []*cli.Command{
			{
				Name:      "put",
				Usage:     "store a refresh token, replacing any existing one",
				ArgsUsage: "<seller|advertiser> <identity-key> [refresh-token]",
				Action:    tokenPutAction,
			},
			{
				Name:      "get",
				Usage:     "print the stored refresh token",
				ArgsUsage: "<seller|advertiser> <identity-key>",
				Action:    tokenGetAction,
			},
			{
				Name:      "exchange",
				Usage:     "redeem an OAuth authorization code and store the refresh token",
				ArgsUsage: "<seller|advertiser> <authorization-code> [identity-key]",
				Action:    tokenExchangeAction,
			},
			{
				Name:      "show",
				Usage:     "print row metadata without the token",
				ArgsUsage: "<seller|advertiser> <identity-key>",
				Action:    tokenShowAction,
			},
		},
	}
}

// tokenArgs parses the leading <kind> <identity-key> arguments.
func tokenArgs(cmd *cli.Command) (model.EntityKind, string, error) {
	if cmd.NArg() < 2 {
		return "", "", fmt.Errorf("expected <seller|advertiser> <identity-key>, got %d argument(s)", cmd.NArg())
	}

	kind, err := model.ParseEntityKind(cmd.Args().Get(0))
	if err != nil {
		return "", "", err
	}
	return kind, cmd.Args().Get(1), nil
}

func tokenPutAction(ctx context.Context, cmd *cli.Command) error {
	kind, key, err := tokenArgs(cmd)
	if err != nil {
		return err
	}

	token := cmd.Args().Get(2)
	if token == "" {
		token, err = readSecret(cmd, "Refresh token: ")
		if err != nil {
			return err
		}
	}
	if token == "" {
		return errors.New("refresh token is empty")
	}

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if err := s.app.Tokens.StoreToken(ctx, kind, key, token); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.Root().Writer, "Stored refresh token for %s %s.\n", kind, key)
	return err
}

func tokenGetAction(ctx context.Context, cmd *cli.Command) error {
	kind, key, err := tokenArgs(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	token, found, err := s.app.Tokens.FetchToken(ctx, kind, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no refresh token found for %s", key)
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, token)
	return err
}

func tokenExchangeAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 2 {
		return fmt.Errorf("expected <seller|advertiser> <authorization-code>, got %d argument(s)", cmd.NArg())
	}
	kind, err := model.ParseEntityKind(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	code, key := cmd.Args().Get(1), cmd.Args().Get(2)

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	exchanger, err := app.NewExchanger(s.cfg.OAuth)
	if err != nil {
		return err
	}

	svc := application.NewExchangeService(exchanger, s.app.Tokens, s.logger)
	stored, err := svc.Exchange(ctx, kind, key, code)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.Root().Writer, "Authorized %s %s.\n", kind, stored)
	return err
}

func tokenShowAction(ctx context.Context, cmd *cli.Command) error {
	kind, key, err := tokenArgs(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	rec, found, err := s.app.Tokens.FetchRecord(ctx, kind, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no refresh token found for %s", key)
	}

	_, err = fmt.Fprintf(cmd.Root().Writer,
		"kind: %s\n%s: %s\ncreated_at: %s\nupdated_at: %s\n",
		rec.Kind, kind.IdentityColumn(), rec.IdentityKey,
		rec.CreatedAt.Format(time.RFC3339), rec.UpdatedAt.Format(time.RFC3339),
	)
	return err
}

// readSecret reads a secret from the command's input. On a terminal the prompt is
// shown and input is not echoed; otherwise the whole input is read and trimmed.
func readSecret(cmd *cli.Command, prompt string) (string, error) {
	in := cmd.Root().Reader
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.Root().ErrWriter, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.Root().ErrWriter)
		if err != nil {
			return "", fmt.Errorf("read from terminal: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
