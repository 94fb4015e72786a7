package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	_ "github.com/reedfamily/rconadmin/internal/game/source"
	_ "github.com/reedfamily/rconadmin/internal/game/sourcemod"
	"github.com/reedfamily/rconadmin/internal/moderation"
	"github.com/reedfamily/rconadmin/internal/rcon"
	"github.com/reedfamily/rconadmin/internal/rcon/rcontest"
	"github.com/reedfamily/rconadmin/internal/store"
	"github.com/reedfamily/rconadmin/internal/testutil"
)

func TestStatusFor(t *testing.T) {
	rconErr := func(kind rcon.Kind) error {
		return &moderation.CommandError{Op: "kick", Err: rcon.Outcome{Kind: kind, Cause: errors.New("x")}.Err()}
	}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("server 3: %w", store.ErrNotFound), http.StatusNotFound},
		{"invalid", fmt.Errorf("%w: bad port", store.ErrInvalid), http.StatusBadRequest},
		{"duration", moderation.ErrInvalidDuration, http.StatusBadRequest},
		{"userid", moderation.ErrInvalidUserID, http.StatusBadRequest},
		{"auth", rconErr(rcon.AuthFailed), http.StatusForbidden},
		{"timeout", rconErr(rcon.Timeout), http.StatusGatewayTimeout},
		{"connect", rconErr(rcon.ConnectFailed), http.StatusBadGateway},
		{"protocol", rconErr(rcon.ProtocolError), http.StatusBadGateway},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteErrHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErr(rec, errors.New("near \"SELEC\": syntax error"), "failed to list bans")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to list bans"}`, rec.Body.String())
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2)
	h := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	// Other clients have their own bucket.
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1000"))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(rate.Inf, 1)
	rl.getLimiter("a")
	rl.getLimiter("b")
	rl.limiters["a"].lastSeen = time.Now().Add(-time.Hour)

	rl.mu.Lock()
	rl.cleanup(time.Now().Add(-10 * time.Minute))
	rl.mu.Unlock()

	assert.NotContains(t, rl.limiters, "a")
	assert.Contains(t, rl.limiters, "b")
}

func TestMaxBytesMiddleware(t *testing.T) {
	h := MaxBytesMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader("short")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader("much longer than eight")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/servers/1/console?token=abc", nil)
	assert.Equal(t, "abc", bearerToken(req))

	req.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", bearerToken(req))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Basic xyz")
	assert.Empty(t, bearerToken(req))
}

func TestIntQuery(t *testing.T) {
	n, err := intQuery("")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = intQuery("25")
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	_, err = intQuery("-1")
	assert.Error(t, err)
	_, err = intQuery("ten")
	assert.Error(t, err)
}

func TestConsole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	inv := store.NewInventory(db)
	audit := store.NewAuditLog(db)

	fake := rcontest.NewServer(t, "secret", func(cmd string) string {
		return "echo: " + cmd
	})
	addr := fake.Address("secret")

	group, err := inv.CreateGroup(ctx, "EU")
	require.NoError(t, err)
	name, ip, port, pass := "pub", addr.Host, int(addr.Port), "secret"
	srv, err := inv.CreateServer(ctx, store.ServerInput{
		GroupID: &group.ID, Name: &name, IP: &ip, Port: &port, RCONPassword: &pass,
	})
	require.NoError(t, err)

	h := NewConsoleHandler(inv, rcon.NewClient(time.Second, time.Second), audit)
	r := chi.NewRouter()
	r.Get("/servers/{id}/console", h.Handle)
	ts := httptest.NewServer(r)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + fmt.Sprintf("/servers/%d/console", srv.ID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("  changelevel de_dust2 ")))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo: changelevel de_dust2", string(reply))
	assert.Equal(t, []string{"changelevel de_dust2"}, fake.Commands())

	entries, err := audit.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "console_command", entries[0].Action)
	assert.Equal(t, "Server: pub", entries[0].Target)
	assert.Equal(t, "Command: changelevel de_dust2", entries[0].Details)
}

func TestConsoleUnknownServer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewConsoleHandler(store.NewInventory(db), rcon.NewClient(time.Second, time.Second), store.NewAuditLog(db))
	r := chi.NewRouter()
	r.Get("/servers/{id}/console", h.Handle)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/servers/42/console", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
