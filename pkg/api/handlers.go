// Package api serves the read side of the event feed over HTTP, plus the
// health endpoint and a small client for both.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"gitfeed/pkg/feed"
)

// EventsHandler lists the most recent feed events as display strings,
// newest first.
type EventsHandler struct {
	Store     feed.Store
	Formatter *feed.Formatter
	Limit     int
	Logger    *log.Logger
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Store == nil {
		http.Error(w, "storage not configured", http.StatusServiceUnavailable)
		return
	}
	records, err := h.Store.RecentEvents(r.Context(), h.Limit)
	if err != nil {
		http.Error(w, "list events failed", http.StatusInternalServerError)
		if h.Logger != nil {
			h.Logger.Printf("list events failed: %v", err)
		}
		return
	}
	formatter := h.Formatter
	if formatter == nil {
		formatter = feed.NewFormatter(h.Logger)
	}
	writeJSON(w, formatter.FormatAll(records))
}

// HealthHandler reports whether the service and its store are reachable.
type HealthHandler struct {
	Store  feed.Store
	Logger *log.Logger
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			if h.Logger != nil {
				h.Logger.Printf("store ping failed: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
