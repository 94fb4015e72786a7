package api

import (
	"net/http"

	"github.com/reedfamily/rconadmin/internal/moderation"
	"github.com/reedfamily/rconadmin/internal/rcon"
	"github.com/reedfamily/rconadmin/internal/store"
)

// ModerationHandler exposes the roster and the kick and ban actions.
type ModerationHandler struct {
	inv   *store.Inventory
	coord *moderation.Coordinator
}

func NewModerationHandler(inv *store.Inventory, coord *moderation.Coordinator) *ModerationHandler {
	return &ModerationHandler{inv: inv, coord: coord}
}

func (h *ModerationHandler) server(w http.ResponseWriter, r *http.Request) (moderation.Server, bool) {
	id, err := idParam(r, "id")
	if err != nil {
		writeErr(w, err, "")
		return moderation.Server{}, false
	}
	srv, err := h.inv.GetServer(r.Context(), id)
	if err != nil {
		writeErr(w, err, "failed to load server")
		return moderation.Server{}, false
	}
	return srv.Target(), true
}

func (h *ModerationHandler) Players(w http.ResponseWriter, r *http.Request) {
	srv, ok := h.server(w, r)
	if !ok {
		return
	}
	players, err := h.coord.ListRoster(r.Context(), srv)
	if err != nil {
		writeErr(w, err, "failed to get players")
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (h *ModerationHandler) Kick(w http.ResponseWriter, r *http.Request) {
	srv, ok := h.server(w, r)
	if !ok {
		return
	}
	var req moderation.KickRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.coord.Kick(r.Context(), srv, actor(r), req); err != nil {
		writeErr(w, err, "failed to kick player")
		return
	}
	writeMessage(w, "Player kicked")
}

func (h *ModerationHandler) Ban(w http.ResponseWriter, r *http.Request) {
	srv, ok := h.server(w, r)
	if !ok {
		return
	}
	var req moderation.BanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.coord.Ban(r.Context(), srv, actor(r), req); err != nil {
		writeErr(w, err, "failed to ban player")
		return
	}
	writeMessage(w, "Player banned and recorded")
}

// Check tests console access to an address that need not be saved yet.
func (h *ModerationHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IP           string `json:"ip"`
		Port         int    `json:"port"`
		RCONPassword string `json:"rcon_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IP == "" || req.Port < 1 || req.Port > 65535 {
		writeError(w, http.StatusBadRequest, "ip and a valid port are required")
		return
	}
	addr := rcon.Address{Host: req.IP, Port: uint16(req.Port), Secret: req.RCONPassword}
	if err := h.coord.TestConnection(r.Context(), addr); err != nil {
		writeErr(w, err, "connection check failed")
		return
	}
	writeMessage(w, "Connection successful")
}
