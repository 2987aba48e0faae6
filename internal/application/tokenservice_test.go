package application_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ericfisherdev/tokenvault/internal/application"
	"github.com/ericfisherdev/tokenvault/internal/domain/model"
	"github.com/ericfisherdev/tokenvault/internal/domain/port/driven"
)

type storeCall struct {
	Op    string
	Kind  model.EntityKind
	Key   string
	Token string
}

type mockTokenStore struct {
	calls      []storeCall
	tokens     map[string]string
	schemaErrs map[model.EntityKind]error
	err        error
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{tokens: make(map[string]string), schemaErrs: make(map[model.EntityKind]error)}
}

func (m *mockTokenStore) EnsureSchema(_ context.Context, kind model.EntityKind) error {
	m.calls = append(m.calls, storeCall{Op: "ensure_schema", Kind: kind})
	return m.schemaErrs[kind]
}

func (m *mockTokenStore) StoreToken(_ context.Context, kind model.EntityKind, key, refreshToken string) error {
	m.calls = append(m.calls, storeCall{Op: "store", Kind: kind, Key: key, Token: refreshToken})
	if m.err != nil {
		return m.err
	}
	m.tokens[string(kind)+"/"+key] = refreshToken
	return nil
}

func (m *mockTokenStore) FetchToken(_ context.Context, kind model.EntityKind, key string) (string, bool, error) {
	m.calls = append(m.calls, storeCall{Op: "fetch", Kind: kind, Key: key})
	if m.err != nil {
		return "", false, m.err
	}
	token, ok := m.tokens[string(kind)+"/"+key]
	return token, ok, nil
}

func (m *mockTokenStore) FetchRecord(_ context.Context, kind model.EntityKind, key string) (model.TokenRecord, bool, error) {
	m.calls = append(m.calls, storeCall{Op: "fetch_record", Kind: kind, Key: key})
	token, ok := m.tokens[string(kind)+"/"+key]
	if !ok {
		return model.TokenRecord{}, false, m.err
	}
	now := time.Now().UTC()
	return model.TokenRecord{Kind: kind, IdentityKey: key, RefreshToken: token, CreatedAt: now, UpdatedAt: now}, true, nil
}

func (m *mockTokenStore) Ping(_ context.Context) error {
	m.calls = append(m.calls, storeCall{Op: "ping"})
	return m.err
}

func newTestService(store *mockTokenStore) *application.TokenService {
	return newTestServiceFor(store)
}

func newTestServiceFor(store driven.TokenStore) *application.TokenService {
	return application.NewTokenService(store, slog.New(slog.DiscardHandler))
}

func attributeKind(kind model.EntityKind) attribute.KeyValue {
	return attribute.String("token.kind", string(kind))
}

func TestTokenService_StoreAndFetch(t *testing.T) {
	store := newMockTokenStore()
	svc := newTestService(store)
	ctx := context.Background()

	require.NoError(t, svc.StoreToken(ctx, model.EntityKindSeller, "A2XXXX", "Atzr|abc"))

	token, found, err := svc.FetchToken(ctx, model.EntityKindSeller, "A2XXXX")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Atzr|abc", token)

	_, found, err = svc.FetchToken(ctx, model.EntityKindAdvertiser, "A2XXXX")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTokenService_FetchAbsent(t *testing.T) {
	svc := newTestService(newMockTokenStore())

	token, found, err := svc.FetchToken(context.Background(), model.EntityKindSeller, "UNKNOWN")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, token)
}

func TestTokenService_ValidatesBeforeStore(t *testing.T) {
	tests := []struct {
		name      string
		kind      model.EntityKind
		key       string
		wantField string
	}{
		{name: "empty key", kind: model.EntityKindSeller, key: "", wantField: "identity_key"},
		{name: "unknown kind", kind: model.EntityKind("vendor"), key: "A2XXXX", wantField: "kind"},
		{name: "empty kind", kind: "", key: "A2XXXX", wantField: "kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockTokenStore()
			svc := newTestService(store)
			ctx := context.Background()

			errs := []error{
				svc.StoreToken(ctx, tt.kind, tt.key, "tok"),
			}
			_, _, err := svc.FetchToken(ctx, tt.kind, tt.key)
			errs = append(errs, err)
			_, _, err = svc.FetchRecord(ctx, tt.kind, tt.key)
			errs = append(errs, err)

			for _, err := range errs {
				var validationErr *model.ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.Equal(t, tt.wantField, validationErr.Field)
			}
			assert.Empty(t, store.calls, "store must not be reached on invalid input")
		})
	}
}

func TestTokenService_EmptyTokenIsAccepted(t *testing.T) {
	store := newMockTokenStore()
	svc := newTestService(store)

	require.NoError(t, svc.StoreToken(context.Background(), model.EntityKindAdvertiser, "ENTITY1", ""))

	token, found, err := svc.FetchToken(context.Background(), model.EntityKindAdvertiser, "ENTITY1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, token)
}

func TestTokenService_PropagatesStoreErrors(t *testing.T) {
	store := newMockTokenStore()
	store.err = &model.StorageUnavailableError{Op: "store", Kind: model.EntityKindSeller, Err: errors.New("connection refused")}
	svc := newTestService(store)

	err := svc.StoreToken(context.Background(), model.EntityKindSeller, "A2XXXX", "tok")

	var storageErr *model.StorageUnavailableError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "store", storageErr.Op)
}

func TestTokenService_EnsureSchemaRejectsUnknownKind(t *testing.T) {
	store := newMockTokenStore()
	svc := newTestService(store)

	err := svc.EnsureSchema(context.Background(), model.EntityKind("vendor"))

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, store.calls)
}

func TestTokenService_Bootstrap(t *testing.T) {
	store := newMockTokenStore()
	svc := newTestService(store)

	require.NoError(t, svc.Bootstrap(context.Background()))

	assert.Equal(t, []storeCall{
		{Op: "ensure_schema", Kind: model.EntityKindSeller},
		{Op: "ensure_schema", Kind: model.EntityKindAdvertiser},
	}, store.calls)
}

func TestTokenService_BootstrapStopsAtFirstFailure(t *testing.T) {
	store := newMockTokenStore()
	cause := &model.StorageUnavailableError{Op: "ensure_schema", Kind: model.EntityKindSeller, Err: errors.New("permission denied")}
	store.schemaErrs[model.EntityKindSeller] = cause
	svc := newTestService(store)

	err := svc.Bootstrap(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootstrap sellers")
	assert.ErrorIs(t, err, cause)
	assert.Len(t, store.calls, 1)
}

func TestTokenService_FetchRecord(t *testing.T) {
	store := newMockTokenStore()
	svc := newTestService(store)
	ctx := context.Background()
	require.NoError(t, svc.StoreToken(ctx, model.EntityKindSeller, "A2XXXX", "tok"))

	rec, found, err := svc.FetchRecord(ctx, model.EntityKindSeller, "A2XXXX")

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tok", rec.RefreshToken)
	assert.Equal(t, model.EntityKindSeller, rec.Kind)
}

func TestTokenService_Ping(t *testing.T) {
	store := newMockTokenStore()
	svc := newTestService(store)

	require.NoError(t, svc.Ping(context.Background()))

	store.err = errors.New("down")
	assert.Error(t, svc.Ping(context.Background()))
}
