package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reedfamily/rconadmin/internal/backup"
	"github.com/reedfamily/rconadmin/internal/moderation"
)

type BackupHandler struct {
	backups *backup.Service
	audit   moderation.AuditLog
}

func NewBackupHandler(backups *backup.Service, audit moderation.AuditLog) *BackupHandler {
	return &BackupHandler{backups: backups, audit: audit}
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List(r.Context())
	if err != nil {
		writeErr(w, err, "failed to list backups")
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	b, err := h.backups.Create(r.Context(), actor(r))
	if err != nil {
		writeErr(w, err, "failed to create backup")
		return
	}
	h.record(r, "create_backup", b.Filename)
	writeJSON(w, http.StatusCreated, b)
}

func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "backupId")
	b, err := h.backups.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err, "failed to get backup")
		return
	}
	path, err := h.backups.FilePath(r.Context(), id)
	if err != nil {
		writeErr(w, err, "failed to get backup")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+b.Filename+`"`)
	http.ServeFile(w, r, path)
}

func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "backupId")
	if err := h.backups.Delete(r.Context(), id); err != nil {
		writeErr(w, err, "failed to delete backup")
		return
	}
	h.record(r, "delete_backup", id)
	writeMessage(w, "Backup deleted")
}

func (h *BackupHandler) record(r *http.Request, action, target string) {
	entry := moderation.AuditEntry{Actor: actor(r), Action: action, Target: "Backup: " + target}
	if err := h.audit.Record(r.Context(), entry); err != nil {
		slog.Error("failed to write audit entry", "action", action, "err", err)
	}
}
