package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gitfeed/internal"
	"gitfeed/pkg/scm"
)

// fakeGitHubHooks answers the two calls EnsureHook makes: an empty hook
// list and a create returning a fixed id.
func fakeGitHubHooks(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[]`))
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":11}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
}

func newHooksHandler(srv *httptest.Server) *HooksHandler {
	manager := scm.NewHookManager(internal.ProvidersConfig{
		GitHub: internal.ProviderConfig{Token: "gh-token", BaseURL: srv.URL},
	})
	return &HooksHandler{Manager: manager, Logger: log.New(io.Discard, "", 0)}
}

func TestHooksHandlerRegisters(t *testing.T) {
	srv := fakeGitHubHooks(t)
	defer srv.Close()
	handler := newHooksHandler(srv)

	body := `{"provider":"github","owner":"octo","repo":"feed","url":"https://feed.example.com/webhooks/github"}`
	req := httptest.NewRequest(http.MethodPost, "/hooks", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" || resp["hook_id"] != "11" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestHooksHandlerRemoves(t *testing.T) {
	srv := fakeGitHubHooks(t)
	defer srv.Close()
	handler := newHooksHandler(srv)

	body := `{"provider":"github","owner":"octo","repo":"feed","url":"https://feed.example.com/webhooks/github"}`
	req := httptest.NewRequest(http.MethodDelete, "/hooks", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestHooksHandlerRejectsBadRequests(t *testing.T) {
	srv := fakeGitHubHooks(t)
	defer srv.Close()
	handler := newHooksHandler(srv)

	cases := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, "{", http.StatusBadRequest},
		{"no token", http.MethodPost, `{"provider":"gitlab","repo_id":"1","url":"https://x"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/hooks", strings.NewReader(tc.body))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, w.Code, tc.want)
		}
	}
}

func TestHooksHandlerWithoutManager(t *testing.T) {
	handler := &HooksHandler{}
	req := httptest.NewRequest(http.MethodPost, "/hooks", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
