package internal

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestID returns the id for an inbound delivery. Provider delivery
// headers win, then a client-supplied X-Request-Id, then a fresh UUID.
func RequestID(r *http.Request) string {
	if r != nil {
		for _, header := range []string{
			"X-GitHub-Delivery",
			"X-Gitlab-Event-UUID",
			"X-Request-UUID",
			"X-Request-Id",
		} {
			if id := r.Header.Get(header); id != "" {
				return id
			}
		}
	}
	return uuid.NewString()
}
