package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"github.com/zalando/go-keyring"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
)

// useSQLite points config loading at a fresh sqlite file for the test.
func useSQLite(t *testing.T, extra ...string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.db")
	vars := append([]string{
		"TOKENVAULT_DATABASE__DIALECT=sqlite",
		"TOKENVAULT_DATABASE__NAME=" + path,
		"TOKENVAULT_LOG_LEVEL=error",
	}, extra...)

	prev := environ
	environ = func() []string { return vars }
	t.Cleanup(func() { environ = prev })
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), append([]string{"tokenvault"}, args...), Streams{
		In:  strings.NewReader(stdin),
		Out: &out,
		Err: &errOut,
	})
	return out.String(), err
}

func TestSchema(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "", "schema")
	require.NoError(t, err)
	assert.Equal(t, "Sellers and advertisers tables ensured to exist.\n", out)

	// Running again leaves existing tables in place.
	_, err = run(t, "", "schema")
	require.NoError(t, err)
}

func TestTokenPutAndGet(t *testing.T) {
	useSQLite(t)
	_, err := run(t, "", "schema")
	require.NoError(t, err)

	out, err := run(t, "", "token", "put", "seller", "A2XXXX", "Atzr|abc")
	require.NoError(t, err)
	assert.Equal(t, "Stored refresh token for seller A2XXXX.\n", out)

	out, err = run(t, "", "token", "get", "seller", "A2XXXX")
	require.NoError(t, err)
	assert.Equal(t, "Atzr|abc\n", out)

	_, err = run(t, "", "token", "get", "advertiser", "A2XXXX")
	assert.ErrorContains(t, err, "no refresh token found for A2XXXX")
}

func TestTokenPutFromStdin(t *testing.T) {
	useSQLite(t)
	_, err := run(t, "", "schema")
	require.NoError(t, err)

	_, err = run(t, "Atzr|from-stdin\n", "token", "put", "advertiser", "ENTITY1")
	require.NoError(t, err)

	out, err := run(t, "", "token", "get", "advertiser", "ENTITY1")
	require.NoError(t, err)
	assert.Equal(t, "Atzr|from-stdin\n", out)
}

func TestTokenPutEmptyStdin(t *testing.T) {
	useSQLite(t)

	_, err := run(t, "  \n", "token", "put", "seller", "A2XXXX")

	assert.ErrorContains(t, err, "refresh token is empty")
}

func TestTokenShow(t *testing.T) {
	useSQLite(t)
	_, err := run(t, "", "schema")
	require.NoError(t, err)
	_, err = run(t, "", "token", "put", "seller", "A2XXXX", "Atzr|abc")
	require.NoError(t, err)

	out, err := run(t, "", "token", "show", "seller", "A2XXXX")

	require.NoError(t, err)
	assert.Contains(t, out, "kind: seller\n")
	assert.Contains(t, out, "selling_partner_id: A2XXXX\n")
	assert.Contains(t, out, "created_at: ")
	assert.NotContains(t, out, "Atzr|abc")
}

func TestTokenArgs(t *testing.T) {
	useSQLite(t)

	_, err := run(t, "", "token", "get", "seller")
	assert.ErrorContains(t, err, "expected <seller|advertiser> <identity-key>")

	_, err = run(t, "", "token", "get", "vendor", "A2XXXX")
	var validationErr *model.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestPing(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "", "ping")

	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestFlagOverridesEnvironment(t *testing.T) {
	useSQLite(t)
	path := filepath.Join(t.TempDir(), "override.db")

	_, err := run(t, "", "--database--name", path, "schema")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestSecretSet(t *testing.T) {
	keyring.MockInit()
	useSQLite(t)

	payload := `{"username":"u","password":"p","host":"db.internal"}`
	out, err := run(t, payload, "secret", "set", "TestSecret")
	require.NoError(t, err)
	assert.Equal(t, "Stored secret TestSecret in keyring service tokenvault.\n", out)

	stored, err := keyring.Get("tokenvault", "TestSecret")
	require.NoError(t, err)
	assert.Equal(t, payload, stored)
}

func TestSecretSetRejectsMalformedPayload(t *testing.T) {
	keyring.MockInit()
	useSQLite(t)

	_, err := run(t, `{"username":"u"}`, "secret", "set", "TestSecret")

	var formatErr *model.SecretFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "password", formatErr.Field)

	_, err = keyring.Get("tokenvault", "TestSecret")
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}

func TestTokenExchange(t *testing.T) {
	var gotCode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotCode = r.PostForm.Get("code")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"Atza|a","refresh_token":"Atzr|exchanged","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)

	useSQLite(t,
		"TOKENVAULT_OAUTH__CLIENT_ID=client",
		"TOKENVAULT_OAUTH__CLIENT_SECRET=secret",
		"TOKENVAULT_OAUTH__TOKEN_URL="+srv.URL,
	)
	_, err := run(t, "", "schema")
	require.NoError(t, err)

	out, err := run(t, "", "token", "exchange", "seller", "ANcode", "A2XXXX")
	require.NoError(t, err)
	assert.Equal(t, "Authorized seller A2XXXX.\n", out)
	assert.Equal(t, "ANcode", gotCode)

	out, err = run(t, "", "token", "get", "seller", "A2XXXX")
	require.NoError(t, err)
	assert.Equal(t, "Atzr|exchanged\n", out)

	out, err = run(t, "", "token", "exchange", "seller", "ANcode2")
	require.NoError(t, err)
	assert.Equal(t, "Authorized seller UNKNOWN_PARTNER.\n", out)
}

func TestTokenExchangeRequiresClient(t *testing.T) {
	useSQLite(t)

	_, err := run(t, "", "token", "exchange", "seller", "ANcode", "A2XXXX")

	assert.ErrorContains(t, err, "client id")
}

func TestExtractAndTransformFlags(t *testing.T) {
	useSQLite(t)
	var got map[string]any

	cmd := newRootCommand(Streams{In: strings.NewReader(""), Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})
	cmd.Commands[0].Action = func(_ context.Context, c *cli.Command) error {
		got = extractAndTransformFlags(c)
		return nil
	}

	err := cmd.Run(context.Background(), []string{"tokenvault", "--log-level", "debug", "--database--dialect", "sqlite", "schema"})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"log_level": "debug", "database.dialect": "sqlite"}, got)
}
