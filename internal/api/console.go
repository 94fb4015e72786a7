package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/reedfamily/rconadmin/internal/moderation"
	"github.com/reedfamily/rconadmin/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ConsoleHandler relays console commands typed in the browser. Each text
// message is one command; the reply is the command output or an error line.
type ConsoleHandler struct {
	inv   *store.Inventory
	exec  moderation.Executor
	audit moderation.AuditLog
}

func NewConsoleHandler(inv *store.Inventory, exec moderation.Executor, audit moderation.AuditLog) *ConsoleHandler {
	return &ConsoleHandler{inv: inv, exec: exec, audit: audit}
}

func (h *ConsoleHandler) Handle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeErr(w, err, "")
		return
	}
	srv, err := h.inv.GetServer(r.Context(), id)
	if err != nil {
		writeErr(w, err, "failed to load server")
		return
	}
	who := actor(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("console websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		cmd := strings.TrimSpace(string(msg))
		if cmd == "" {
			continue
		}

		reply := h.run(ctx, srv, who, cmd)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			return
		}
	}
}

func (h *ConsoleHandler) run(ctx context.Context, srv store.Server, who, cmd string) string {
	out := h.exec.Execute(ctx, srv.Target().Addr, cmd)

	entry := moderation.AuditEntry{
		Actor:   who,
		Action:  "console_command",
		Target:  fmt.Sprintf("Server: %s", srv.Name),
		Details: "Command: " + cmd,
	}
	if err := h.audit.Record(ctx, entry); err != nil {
		slog.Error("failed to write audit entry", "action", entry.Action, "err", err)
	}

	if err := out.Err(); err != nil {
		return "Error: " + err.Error()
	}
	return out.Body
}
