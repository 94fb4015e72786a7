package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedfamily/rconadmin/internal/config"
	"github.com/reedfamily/rconadmin/internal/rcon/rcontest"
	"github.com/reedfamily/rconadmin/internal/testutil"
)

const aliceStatus = `hostname: test
# userid name uniqueid connected ping loss state adr
# 2 "Alice" STEAM_1:0:123 05:00 50 0 active 1.2.3.4:27005
`

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func setup(t *testing.T) *client {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.DefaultUser = "admin"
	cfg.DefaultPass = "hunter2"
	cfg.RCON.DialTimeout = time.Second
	cfg.RCON.Timeout = time.Second

	s, err := New(context.Background(), &cfg, testutil.SetupTestDB(t))
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		assert.NoError(t, s.Stop(ctx))
	})

	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)

	c := &client{t: t, base: ts.URL}
	var login struct {
		Token string `json:"token"`
	}
	require.Equal(t, http.StatusOK, c.do("POST", "/api/auth/login", map[string]string{"username": "admin", "password": "hunter2"}, &login))
	c.token = login.Token
	return c
}

func (c *client) createServer(group int64, name, secret string, fake *rcontest.Server) int64 {
	c.t.Helper()
	addr := fake.Address(secret)
	var srv struct {
		ID int64 `json:"id"`
	}
	code := c.do("POST", "/api/servers", map[string]any{
		"group_id": group, "name": name, "ip": addr.Host, "port": addr.Port, "rcon_password": secret,
	}, &srv)
	require.Equal(c.t, http.StatusCreated, code)
	return srv.ID
}

func TestBanFlow(t *testing.T) {
	c := setup(t)
	fake := rcontest.NewServer(t, "secret", func(cmd string) string {
		if cmd == "status" {
			return aliceStatus
		}
		return ""
	})

	var group struct {
		ID int64 `json:"id"`
	}
	require.Equal(t, http.StatusCreated, c.do("POST", "/api/server-groups", map[string]string{"name": "EU"}, &group))
	id := c.createServer(group.ID, "pub #1", "secret", fake)

	var players []map[string]any
	require.Equal(t, http.StatusOK, c.do("GET", fmt.Sprintf("/api/servers/%d/players", id), nil, &players))
	require.Len(t, players, 1)
	assert.Equal(t, "Alice", players[0]["name"])
	assert.Equal(t, "STEAM_1:0:123", players[0]["steam_id"])

	var msg map[string]string
	code := c.do("POST", fmt.Sprintf("/api/servers/%d/ban", id), map[string]any{"userid": 2, "duration": 60, "reason": "cheating"}, &msg)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Player banned and recorded", msg["message"])
	assert.Contains(t, fake.Commands(), `sm_ban #2 60 "cheating"`)

	var bans []map[string]any
	require.Eventually(t, func() bool {
		bans = nil
		c.do("GET", "/api/bans", nil, &bans)
		return len(bans) == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "Alice", bans[0]["name"])
	assert.Equal(t, "STEAM_0:0:123", bans[0]["steam_id"])
	assert.Equal(t, "[U:1:246]", bans[0]["steam_id_3"])
	assert.Equal(t, "76561197960265974", bans[0]["steam_id_64"])
	assert.Equal(t, "1.2.3.4", bans[0]["ip"])
	assert.Equal(t, "active", bans[0]["status"])

	banID := int64(bans[0]["id"].(float64))
	var unbanned map[string]any
	require.Equal(t, http.StatusOK, c.do("POST", fmt.Sprintf("/api/bans/%d/unban", banID), nil, &unbanned))
	assert.Equal(t, "unbanned", unbanned["status"])

	var logs []map[string]any
	require.Eventually(t, func() bool {
		logs = nil
		c.do("GET", "/api/logs", nil, &logs)
		return len(logs) >= 4
	}, 3*time.Second, 20*time.Millisecond)
	var actions []string
	for _, l := range logs {
		actions = append(actions, l["action"].(string))
	}
	assert.Subset(t, actions, []string{"create_group", "create_server", "ban_player", "unban"})
}

func TestErrorMapping(t *testing.T) {
	c := setup(t)
	fake := rcontest.NewServer(t, "secret", func(string) string { return "" })

	var group struct {
		ID int64 `json:"id"`
	}
	require.Equal(t, http.StatusCreated, c.do("POST", "/api/server-groups", map[string]string{"name": "EU"}, &group))
	id := c.createServer(group.ID, "wrong secret", "nope", fake)

	var body map[string]string
	code := c.do("POST", fmt.Sprintf("/api/servers/%d/kick", id), map[string]any{"userid": 2}, &body)
	assert.Equal(t, http.StatusForbidden, code)
	assert.True(t, strings.HasPrefix(body["error"], "failed to kick: "), body["error"])

	code = c.do("POST", fmt.Sprintf("/api/servers/%d/ban", id), map[string]any{"userid": 2, "duration": -5}, &body)
	assert.Equal(t, http.StatusBadRequest, code)
	code = c.do("POST", fmt.Sprintf("/api/servers/%d/ban", id), map[string]any{"userid": 2, "duration": 200_000_000}, &body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Empty(t, fake.Commands())

	assert.Equal(t, http.StatusNotFound, c.do("GET", "/api/servers/999/players", nil, &body))
	assert.Equal(t, http.StatusBadRequest, c.do("GET", "/api/servers/abc/players", nil, &body))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	code = c.do("POST", "/api/servers/check", map[string]any{"ip": "127.0.0.1", "port": port, "rcon_password": "x"}, &body)
	assert.Equal(t, http.StatusBadGateway, code)

	addr := fake.Address("secret")
	code = c.do("POST", "/api/servers/check", map[string]any{"ip": addr.Host, "port": addr.Port, "rcon_password": "secret"}, &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Connection successful", body["message"])
}

func TestAuthRequired(t *testing.T) {
	c := setup(t)
	anon := &client{t: t, base: c.base}

	var body map[string]string
	assert.Equal(t, http.StatusUnauthorized, anon.do("GET", "/api/bans", nil, &body))
	assert.Equal(t, http.StatusUnauthorized, anon.do("POST", "/api/auth/login", map[string]string{"username": "admin", "password": "bad"}, &body))

	var me map[string]any
	require.Equal(t, http.StatusOK, c.do("GET", "/api/auth/me", nil, &me))
	assert.Equal(t, "admin", me["username"])

	var games []string
	require.Equal(t, http.StatusOK, c.do("GET", "/api/games", nil, &games))
	assert.Equal(t, []string{"source", "sourcemod"}, games)

	require.Equal(t, http.StatusOK, c.do("POST", "/api/auth/logout", nil, &body))
	assert.Equal(t, http.StatusUnauthorized, c.do("GET", "/api/auth/me", nil, &body))
}

func TestLoginRateLimit(t *testing.T) {
	c := setup(t)
	anon := &client{t: t, base: c.base}

	// setup used one token of the burst.
	var body map[string]string
	limited := false
	for i := 0; i < 10 && !limited; i++ {
		limited = anon.do("POST", "/api/auth/login", map[string]string{"username": "admin", "password": "bad"}, &body) == http.StatusTooManyRequests
	}
	assert.True(t, limited)
	assert.Equal(t, "too many requests", body["error"])
}

func TestBackups(t *testing.T) {
	c := setup(t)

	var b map[string]any
	require.Equal(t, http.StatusCreated, c.do("POST", "/api/backups", nil, &b))
	id := b["id"].(string)
	assert.Equal(t, "admin", b["created_by"])

	var list []map[string]any
	require.Equal(t, http.StatusOK, c.do("GET", "/api/backups", nil, &list))
	require.Len(t, list, 1)

	req, err := http.NewRequest("GET", c.base+"/api/backups/"+id, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte{0x1f, 0x8b}, body[:2])

	var msg map[string]string
	require.Equal(t, http.StatusOK, c.do("DELETE", "/api/backups/"+id, nil, &msg))
	assert.Equal(t, http.StatusNotFound, c.do("DELETE", "/api/backups/"+id, nil, &msg))
}
