package lwa_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/tokenvault/internal/adapter/driven/lwa"
)

// tokenEndpoint serves a fixed token response and records the last form posted.
func tokenEndpoint(t *testing.T, status int, body map[string]any) (*httptest.Server, *url.Values) {
	t.Helper()
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &form
}

func newTestExchanger(t *testing.T, tokenURL string) *lwa.Exchanger {
	t.Helper()
	e, err := lwa.NewExchanger(lwa.Config{
		ClientID:     "amzn1.application-oa2-client.test",
		ClientSecret: "client-secret",
		RedirectURL:  "https://auth.example.com/callback",
		TokenURL:     tokenURL,
	})
	require.NoError(t, err)
	return e
}

func TestExchanger_Exchange(t *testing.T) {
	srv, form := tokenEndpoint(t, http.StatusOK, map[string]any{
		"access_token":  "Atza|access",
		"refresh_token": "Atzr|refresh",
		"token_type":    "bearer",
		"expires_in":    3600,
	})
	e := newTestExchanger(t, srv.URL)

	token, err := e.Exchange(context.Background(), "ANxyz")

	require.NoError(t, err)
	assert.Equal(t, "Atzr|refresh", token)
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "ANxyz", form.Get("code"))
	assert.Equal(t, "amzn1.application-oa2-client.test", form.Get("client_id"))
	assert.Equal(t, "client-secret", form.Get("client_secret"))
	assert.Equal(t, "https://auth.example.com/callback", form.Get("redirect_uri"))
}

func TestExchanger_NoRefreshToken(t *testing.T) {
	srv, _ := tokenEndpoint(t, http.StatusOK, map[string]any{
		"access_token": "Atza|access",
		"token_type":   "bearer",
	})

	_, err := newTestExchanger(t, srv.URL).Exchange(context.Background(), "ANxyz")

	assert.ErrorIs(t, err, lwa.ErrNoRefreshToken)
}

func TestExchanger_EndpointError(t *testing.T) {
	srv, _ := tokenEndpoint(t, http.StatusBadRequest, map[string]any{
		"error":             "invalid_grant",
		"error_description": "The authorization code is invalid",
	})

	_, err := newTestExchanger(t, srv.URL).Exchange(context.Background(), "expired")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestNewExchanger_RequiresClient(t *testing.T) {
	_, err := lwa.NewExchanger(lwa.Config{ClientSecret: "s"})
	assert.ErrorContains(t, err, "client id")

	_, err = lwa.NewExchanger(lwa.Config{ClientID: "id"})
	assert.ErrorContains(t, err, "client secret")
}
