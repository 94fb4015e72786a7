package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/reedfamily/rconadmin/internal/moderation"
	"github.com/reedfamily/rconadmin/internal/store"
)

type BanHandler struct {
	bans  *store.Bans
	audit moderation.AuditLog
}

func NewBanHandler(bans *store.Bans, audit moderation.AuditLog) *BanHandler {
	return &BanHandler{bans: bans, audit: audit}
}

// List supports ?status=active|expired|unbanned, ?q=, ?limit= and ?offset=.
func (h *BanHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.BanFilter{Status: q.Get("status"), Query: q.Get("q")}
	var err error
	if f.Limit, err = intQuery(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if f.Offset, err = intQuery(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	bans, err := h.bans.List(r.Context(), f)
	if err != nil {
		writeErr(w, err, "failed to list bans")
		return
	}
	writeJSON(w, http.StatusOK, bans)
}

func (h *BanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeErr(w, err, "")
		return
	}
	ban, err := h.bans.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err, "failed to get ban")
		return
	}
	writeJSON(w, http.StatusOK, ban)
}

func (h *BanHandler) Unban(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeErr(w, err, "")
		return
	}
	ban, err := h.bans.Unban(r.Context(), id)
	if err != nil {
		writeErr(w, err, "failed to unban")
		return
	}

	entry := moderation.AuditEntry{
		Actor:   actor(r),
		Action:  "unban",
		Target:  fmt.Sprintf("Ban ID: %d", id),
		Details: fmt.Sprintf("Player: %s (%s)", ban.Name, ban.SteamID),
	}
	if err := h.audit.Record(r.Context(), entry); err != nil {
		slog.Error("failed to write audit entry", "action", entry.Action, "err", err)
	}
	writeJSON(w, http.StatusOK, ban)
}

type LogHandler struct {
	audit *store.AuditLog
}

func NewLogHandler(audit *store.AuditLog) *LogHandler {
	return &LogHandler{audit: audit}
}

func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	entries, err := h.audit.List(r.Context(), limit)
	if err != nil {
		writeErr(w, err, "failed to list logs")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func intQuery(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}
