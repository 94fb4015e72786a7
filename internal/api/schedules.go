package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reedfamily/rconadmin/internal/scheduler"
	"github.com/reedfamily/rconadmin/internal/store"
)

type ScheduleHandler struct {
	inv       *store.Inventory
	schedules *scheduler.Store
}

func NewScheduleHandler(inv *store.Inventory, schedules *scheduler.Store) *ScheduleHandler {
	return &ScheduleHandler{inv: inv, schedules: schedules}
}

// serverID reads {id} and checks the server exists.
func (h *ScheduleHandler) serverID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := idParam(r, "id")
	if err != nil {
		writeErr(w, err, "")
		return 0, false
	}
	if _, err := h.inv.GetServer(r.Context(), id); err != nil {
		writeErr(w, err, "failed to load server")
		return 0, false
	}
	return id, true
}

// List returns all schedules for a server.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	serverID, ok := h.serverID(w, r)
	if !ok {
		return
	}
	schedules, err := h.schedules.List(r.Context(), serverID)
	if err != nil {
		writeErr(w, err, "failed to list schedules")
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	serverID, ok := h.serverID(w, r)
	if !ok {
		return
	}
	var in scheduler.ScheduleInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s, err := h.schedules.Create(r.Context(), serverID, in)
	if err != nil {
		writeErr(w, err, "failed to create schedule")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	serverID, ok := h.serverID(w, r)
	if !ok {
		return
	}
	var in scheduler.ScheduleInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s, err := h.schedules.Update(r.Context(), serverID, chi.URLParam(r, "scheduleId"), in)
	if err != nil {
		writeErr(w, err, "failed to update schedule")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	serverID, ok := h.serverID(w, r)
	if !ok {
		return
	}
	if err := h.schedules.Delete(r.Context(), serverID, chi.URLParam(r, "scheduleId")); err != nil {
		writeErr(w, err, "failed to delete schedule")
		return
	}
	writeMessage(w, "schedule deleted")
}
