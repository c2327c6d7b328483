package main

import (
	"context"
	"testing"

	"dress-to-impress/internal/config"
	"dress-to-impress/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackendMemoryUsesDevUsers(t *testing.T) {
	cfg := config.Default()
	cfg.StoreBackend = config.BackendMemory
	opts := &serveOptions{devUsers: map[string]string{"tok": "user-1"}}

	b, err := openBackend(cfg, opts, zerolog.Nop())
	require.NoError(t, err)
	defer b.close()

	assert.IsType(t, &store.Memory{}, b.games)
	profile, err := b.identity.FetchUserProfile(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "user-1", profile.ID)

	_, err = b.identity.FetchUserProfile(context.Background(), "other")
	assert.Error(t, err)
}

func TestOpenBackendMemoryPrefersJWTSecret(t *testing.T) {
	cfg := config.Default()
	cfg.StoreBackend = config.BackendMemory
	cfg.SupabaseJWTSecret = "secret"

	b, err := openBackend(cfg, &serveOptions{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &store.JWTIdentity{}, b.identity)
}

func TestOpenBackendSupabase(t *testing.T) {
	cfg := config.Default()
	cfg.SupabaseURL = "http://127.0.0.1:54321"
	cfg.SupabaseKey = "anon"

	b, err := openBackend(cfg, &serveOptions{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &store.SupabaseClient{}, b.games)
	assert.Same(t, b.games, b.identity)
}

func TestOpenBackendUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.StoreBackend = "redis"
	_, err := openBackend(cfg, &serveOptions{}, zerolog.Nop())
	assert.ErrorContains(t, err, "redis")
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "migrate-create"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, root.Flags().Lookup("dev-user"))
	assert.NotNil(t, root.PersistentFlags().Lookup("env-file"))
}
