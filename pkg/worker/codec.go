package worker

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"

	"gitfeed/pkg/feed"
)

// Codec is an interface for decoding messages from a message broker into an Event.
type Codec interface {
	// Decode transforms a Watermill message into an Event.
	Decode(topic string, msg *message.Message) (*Event, error)
}

// DefaultCodec is the default implementation of the Codec interface.
// It decodes the envelope the hook server publishes for every delivery.
type DefaultCodec struct{}

// envelope mirrors the wire form of a published hook event.
type envelope struct {
	Provider   string          `json:"provider"`
	Name       string          `json:"name"`
	RequestID  string          `json:"request_id"`
	Record     *feed.Record    `json:"record"`
	RawPayload json.RawMessage `json:"raw_payload"`
}

// Decode unmarshals a Watermill message into an Event.
func (DefaultCodec) Decode(topic string, msg *message.Message) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(msg.Metadata))
	for key, value := range msg.Metadata {
		metadata[key] = value
	}

	provider := env.Provider
	if provider == "" {
		provider = msg.Metadata.Get("provider")
	}
	eventName := env.Name
	if eventName == "" {
		eventName = msg.Metadata.Get("event")
	}
	requestID := env.RequestID
	if requestID == "" {
		requestID = msg.Metadata.Get("request_id")
	}

	payload := json.RawMessage(env.RawPayload)
	if len(payload) == 0 {
		payload = json.RawMessage(msg.Payload)
	}

	var normalized map[string]interface{}
	var raw interface{}
	if err := json.Unmarshal(payload, &raw); err == nil {
		if object, ok := raw.(map[string]interface{}); ok {
			normalized = object
		}
	}

	return &Event{
		Provider:   provider,
		Type:       eventName,
		RequestID:  requestID,
		Topic:      topic,
		Metadata:   metadata,
		Record:     env.Record,
		Payload:    payload,
		Normalized: normalized,
	}, nil
}
