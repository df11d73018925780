package internal

import (
	"encoding/json"

	"gitfeed/pkg/feed"
)

// Event is the envelope published for every accepted hook delivery.
// Record carries the normalized form when the delivery maps onto one of
// the feed actions; RawPayload preserves the provider body for consumers
// that need fields normalization drops.
type Event struct {
	Provider   string          `json:"provider"`
	Name       string          `json:"name"`
	RequestID  string          `json:"request_id,omitempty"`
	Record     *feed.Record    `json:"record,omitempty"`
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`

	// data caches the decoded payload for rule evaluation. It is not
	// part of the wire envelope; consumers decode RawPayload instead.
	data map[string]interface{}
}

// PayloadMap decodes RawPayload once and caches the result. It returns
// nil when the payload is absent or is not a JSON object.
func (e *Event) PayloadMap() map[string]interface{} {
	if e == nil {
		return nil
	}
	if e.data != nil {
		return e.data
	}
	if len(e.RawPayload) == 0 {
		return nil
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(e.RawPayload, &decoded); err != nil {
		return nil
	}
	e.data = decoded
	return decoded
}
