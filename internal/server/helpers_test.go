package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Tyrowin/talkroom/internal/auth"
	"github.com/Tyrowin/talkroom/internal/config"
	"github.com/Tyrowin/talkroom/internal/logging"
	"github.com/Tyrowin/talkroom/internal/users"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

var fixedNow = time.Date(2024, 3, 1, 14, 7, 0, 0, time.UTC)

// testEnv is a running server backed by the in-memory store.
type testEnv struct {
	cfg  config.Config
	repo *users.MemoryRepository
	auth *auth.Service
	hub  *Hub
	srv  *Server
	ts   *httptest.Server
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.AllowedOrigins = nil
	cfg.TimeZone = "UTC"
	cfg.Auth.Secret = testSecret
	cfg.Auth.BcryptCost = bcrypt.MinCost
	return cfg
}

// sequentialIDs returns an id generator yielding msg-1, msg-2, ...
func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("msg-%d", n.Add(1))
	}
}

func newTestHub() *Hub {
	return NewHub(HubOptions{
		Logger:   logging.Discard(),
		Now:      func() time.Time { return fixedNow },
		Location: time.UTC,
		NewID:    sequentialIDs(),
	})
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets a test adjust the config before the server is built.
func newTestEnvWith(t *testing.T, adjust func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if adjust != nil {
		adjust(&cfg)
	}
	repo := users.NewMemoryRepository()
	log := logging.Discard()
	svc := auth.NewService(repo, cfg.Auth, log)

	hub := newTestHub()
	go hub.Run()

	srv, err := NewServer(Deps{
		Config: cfg,
		Logger: log,
		Hub:    hub,
		Auth:   svc,
		Guard:  auth.NewGuard(repo, cfg.Auth.Secret, log),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
	})

	return &testEnv{cfg: cfg, repo: repo, auth: svc, hub: hub, srv: srv, ts: ts}
}

// register creates a user through the auth service.
func (e *testEnv) register(t *testing.T, name, email, password string) *users.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), auth.RegisterInput{
		Name: name, Email: email, Password: password, PasswordConfirm: password,
	})
	require.NoError(t, err)
	return u
}

// sessionCookie logs in and returns the resulting session cookie.
func (e *testEnv) sessionCookie(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	session, err := e.auth.Login(context.Background(), email, password)
	require.NoError(t, err)
	return auth.SessionCookie(session)
}

// noRedirectClient returns redirect responses to the caller.
func noRedirectClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"
}

// dial opens a chat socket with a same-host Origin, optionally carrying cookie.
func (e *testEnv) dial(t *testing.T, cookie *http.Cookie) *websocket.Conn {
	t.Helper()

	headers := http.Header{}
	headers.Set("Origin", e.ts.URL)
	if cookie != nil {
		headers.Set("Cookie", cookie.Name+"="+cookie.Value)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(e.wsURL(), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitForClients blocks until the hub has n registered clients.
func (e *testEnv) waitForClients(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return e.hub.ClientCount() == n },
		2*time.Second, 10*time.Millisecond, "expected %d clients", n)
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	env := map[string]any{"event": event}
	if data != nil {
		env["data"] = data
	}
	require.NoError(t, conn.WriteJSON(env))
}

// readFrame reads one raw text frame with a timeout.
func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return data
}
