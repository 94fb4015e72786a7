package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/reedfamily/rconadmin/internal/game"
	"github.com/reedfamily/rconadmin/internal/moderation"
	"github.com/reedfamily/rconadmin/internal/store"
)

// ServerHandler manages server groups and servers.
type ServerHandler struct {
	inv   *store.Inventory
	audit moderation.AuditLog
}

func NewServerHandler(inv *store.Inventory, audit moderation.AuditLog) *ServerHandler {
	return &ServerHandler{inv: inv, audit: audit}
}

func (h *ServerHandler) record(r *http.Request, action, target, details string) {
	entry := moderation.AuditEntry{Actor: actor(r), Action: action, Target: target, Details: details}
	if err := h.audit.Record(r.Context(), entry); err != nil {
		slog.Error("failed to write audit entry", "action", action, "err", err)
	}
}

// ListGroups returns every group with its servers.
func (h *ServerHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.inv.ListGroups(r.Context())
	if err != nil {
		writeErr(w, err, "failed to list server groups")
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *ServerHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	g, err := h.inv.CreateGroup(r.Context(), req.Name)
	if err != nil {
		writeErr(w, err, "failed to create server group")
		return
	}
	h.record(r, "create_group", fmt.Sprintf("Group: %s", g.Name), fmt.Sprintf("ID: %d", g.ID))
	writeJSON(w, http.StatusCreated, g)
}

func (h *ServerHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeErr(w, err, "")
		return
	}
	if err := h.inv.DeleteGroup(r.Context(), id); err != nil {
		writeErr(w, err, "failed to delete server group")
		return
	}
	h.record(r, "delete_group", fmt.Sprintf("Group ID: %d", id), "")
	writeMessage(w, "server group deleted")
}

func (h *ServerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in store.ServerInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	srv, err := h.inv.CreateServer(r.Context(), in)
	if err != nil {
		writeErr(w, err, "failed to create server")
		return
	}
	h.record(r, "create_server", fmt.Sprintf("Server: %s", srv.Name), fmt.Sprintf("ID: %d, Address: %s:%d, Game: %s", srv.ID, srv.IP, srv.Port, srv.Game))
	writeJSON(w, http.StatusCreated, srv)
}

func (h *ServerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeErr(w, err, "")
		return
	}
	var in store.ServerInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	srv, err := h.inv.UpdateServer(r.Context(), id, in)
	if err != nil {
		writeErr(w, err, "failed to update server")
		return
	}
	h.record(r, "update_server", fmt.Sprintf("Server: %s", srv.Name), fmt.Sprintf("ID: %d", srv.ID))
	writeJSON(w, http.StatusOK, srv)
}

func (h *ServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeErr(w, err, "")
		return
	}
	srv, err := h.inv.GetServer(r.Context(), id)
	if err != nil {
		writeErr(w, err, "failed to delete server")
		return
	}
	if err := h.inv.DeleteServer(r.Context(), id); err != nil {
		writeErr(w, err, "failed to delete server")
		return
	}
	h.record(r, "delete_server", fmt.Sprintf("Server: %s", srv.Name), fmt.Sprintf("ID: %d", id))
	writeMessage(w, "server deleted")
}

// Games lists the supported command dialects.
func (h *ServerHandler) Games(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, game.Names())
}
