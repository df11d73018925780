package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"gitfeed/pkg/scm"
)

// HooksHandler manages the feed's webhooks on the providers themselves.
// POST registers the hook described by the JSON body and answers with
// the provider's hook id, DELETE removes it. Both need a provider token
// in config.
type HooksHandler struct {
	Manager *scm.HookManager
	Logger  *log.Logger
}

func (h *HooksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Manager == nil {
		http.Error(w, "hook management not configured", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var spec scm.HookSpec
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&spec); err != nil {
		http.Error(w, "invalid hook spec", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodPost {
		id, err := h.Manager.EnsureHook(r.Context(), spec)
		if err != nil {
			http.Error(w, "hook register failed", http.StatusBadRequest)
			if h.Logger != nil {
				h.Logger.Printf("hook register failed: %v", err)
			}
			return
		}
		writeJSON(w, map[string]string{"status": "ok", "hook_id": id})
		return
	}

	if err := h.Manager.RemoveHook(r.Context(), spec); err != nil {
		http.Error(w, "hook remove failed", http.StatusBadRequest)
		if h.Logger != nil {
			h.Logger.Printf("hook remove failed: %v", err)
		}
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
