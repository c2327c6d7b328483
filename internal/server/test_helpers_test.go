package server

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"dress-to-impress/internal/config"
	"dress-to-impress/internal/store"

	"github.com/rs/zerolog"
)

const (
	hostToken   = "host-token"
	aliceToken  = "alice-token"
	bobToken    = "bob-token"
	carolToken  = "carol-token"
	hostUserID  = "user-host"
	aliceUserID = "user-alice"
	bobUserID   = "user-bob"
	carolUserID = "user-carol"
)

type testEnv struct {
	srv      *Server
	ts       *httptest.Server
	memory   *store.Memory
	identity *store.StaticIdentity
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Env = "test"
	cfg.StoreBackend = config.BackendMemory
	cfg.StoreTimeoutSeconds = 5
	return cfg
}

func testIdentity() *store.StaticIdentity {
	return store.NewStaticIdentity(map[string]store.Profile{
		hostToken:  {ID: hostUserID, Email: "host@example.com", UserMetadata: map[string]any{"full_name": "Hostess"}},
		aliceToken: {ID: aliceUserID, Email: "alice@example.com"},
		bobToken:   {ID: bobUserID, Email: "bob@example.com"},
		carolToken: {ID: carolUserID},
	})
}

// newTestEnv starts a server over the memory backend. games may wrap the
// memory store; nil uses it directly.
func newTestEnv(t *testing.T, cfg config.Config, wrap func(store.Games) store.Games) *testEnv {
	t.Helper()
	memory := store.NewMemory()
	var games store.Games = memory
	if wrap != nil {
		games = wrap(memory)
	}
	identity := testIdentity()
	srv := New(games, identity, cfg, zerolog.Nop())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &testEnv{srv: srv, ts: ts, memory: memory, identity: identity}
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}
