package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/reedfamily/rconadmin/internal/stats"
	"github.com/reedfamily/rconadmin/internal/store"
)

type PopulationHandler struct {
	inv       *store.Inventory
	collector *stats.Collector
}

func NewPopulationHandler(inv *store.Inventory, collector *stats.Collector) *PopulationHandler {
	return &PopulationHandler{inv: inv, collector: collector}
}

// History returns player counts for ?period= (a Go duration, default 24h).
func (h *PopulationHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeErr(w, err, "")
		return
	}
	period := 24 * time.Hour
	if p := r.URL.Query().Get("period"); p != "" {
		if period, err = time.ParseDuration(p); err != nil || period <= 0 {
			writeError(w, http.StatusBadRequest, "invalid period: use format like 1h, 6h, 24h")
			return
		}
	}
	if _, err := h.inv.GetServer(r.Context(), id); err != nil {
		writeErr(w, err, "failed to load server")
		return
	}

	samples, err := h.collector.History(r.Context(), id, time.Now().Add(-period))
	if err != nil {
		writeErr(w, err, "failed to query population")
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

// Live pushes a sample over the websocket every time the collector polls the
// server.
func (h *PopulationHandler) Live(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeErr(w, err, "")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("population websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch := h.collector.Subscribe(id)
	defer h.collector.Unsubscribe(id, ch)

	if latest, ok := h.collector.Latest(id); ok {
		if err := conn.WriteJSON(latest); err != nil {
			return
		}
	}

	// Read from client to detect disconnect
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(s); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
