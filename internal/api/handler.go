// Package api is the admin HTTP surface: health/readiness probes,
// Prometheus scraping, dispatcher/roster introspection, config
// hot-reload, and a JSON event-submission endpoint that funnels onto
// the dispatcher's single-writer goroutine via EventFunnel.
//
// Grounded on the teacher's api package (same route-table-over-
// http.ServeMux shape, same writeJSON/writeError envelope), adapted
// from a rule-engine ingestion API to a BLE dispatcher's introspection
// and event-injection surface.
package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dohiam/BLE-protocols/internal/bleevent"
	"github.com/dohiam/BLE-protocols/internal/config"
	"github.com/dohiam/BLE-protocols/internal/dispatcher"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	d      *dispatcher.Dispatcher
	loader *config.Loader
	funnel *EventFunnel
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(d *dispatcher.Dispatcher, loader *config.Loader, funnel *EventFunnel, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{d: d, loader: loader, funnel: funnel, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/events", h.submitEvent)
	h.mux.HandleFunc("GET /v1/dispatcher", h.dispatcherStatus)
	h.mux.HandleFunc("GET /v1/roster", h.roster)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h.logRequests(h.mux)
}

// eventRequest is the wire shape of a submitted packet: Payload is the
// hex-encoded HCI event bytes starting at the event code, the same
// slice bleevent.Packet.Payload holds once decoded.
type eventRequest struct {
	Type    byte   `json:"type"`
	Payload string `json:"payload"`
}

// POST /v1/events — enqueues one packet onto the dispatcher's event
// funnel. Returns 202 once queued, not once processed: processing
// happens asynchronously on the funnel's drain goroutine.
func (h *Handler) submitEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	payload, err := hex.DecodeString(req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid hex payload: %s", err))
		return
	}
	p := &bleevent.Packet{Type: bleevent.PacketType(req.Type), Payload: payload}
	if !h.funnel.Submit(p) {
		writeError(w, http.StatusTooManyRequests, "event funnel full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

// GET /v1/dispatcher — reports whether a protocol is currently running
// and, if so, its name and correlation run ID.
func (h *Handler) dispatcherStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"running": h.d.IsRunning()}
	if p := h.d.Get(); p != nil {
		status["protocol"] = p.Name
		status["run_id"] = h.d.RunID()
		status["done"] = p.Done()
	}
	writeJSON(w, http.StatusOK, status)
}

// GET /v1/roster — lists the configured device roster by address and
// name.
func (h *Handler) roster(w http.ResponseWriter, r *http.Request) {
	res := h.loader.Current()
	entries := make([]map[string]string, 0, len(res.RosterNames))
	for addr, name := range res.RosterNames {
		entries = append(entries, map[string]string{"addr": addr.String(), "name": name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"roster": entries})
}

// POST /v1/config/reload — forces an immediate re-read of the config
// file, the manual counterpart to the Loader's fsnotify-driven Watch.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	res, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":      true,
		"roster_count":  len(res.RosterNames),
		"catalog_count": len(res.CatalogNames),
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 once the event funnel is over 80% full, so a load
// balancer backs off before packets start getting dropped.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.funnel.Utilization()
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":             "overloaded",
			"funnel_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ready",
		"funnel_utilization": util,
	})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debug("admin request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
