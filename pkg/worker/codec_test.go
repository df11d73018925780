package worker

import (
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"

	"gitfeed/pkg/feed"
)

func TestDefaultCodecDecodesEnvelope(t *testing.T) {
	payload := `{
		"provider": "github",
		"name": "push",
		"request_id": "9049f1265b7d61be4a8904a9a27120d2064dab3b",
		"record": {
			"request_id": "9049f1265b7d61be4a8904a9a27120d2064dab3b",
			"author": "alice",
			"action": "PUSH",
			"from_branch": "",
			"to_branch": "main",
			"timestamp": "2021-08-09T14:32:55+05:30"
		},
		"raw_payload": {"ref": "refs/heads/main", "after": "9049f1265b7d61be4a8904a9a27120d2064dab3b"}
	}`
	msg := message.NewMessage("1", []byte(payload))
	msg.Metadata.Set("driver", "gochannel")

	evt, err := DefaultCodec{}.Decode("feed.events", msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Provider != "github" || evt.Type != "push" {
		t.Fatalf("unexpected event identity: %q %q", evt.Provider, evt.Type)
	}
	if evt.RequestID != "9049f1265b7d61be4a8904a9a27120d2064dab3b" {
		t.Fatalf("unexpected request id %q", evt.RequestID)
	}
	if evt.Topic != "feed.events" {
		t.Fatalf("unexpected topic %q", evt.Topic)
	}
	if evt.Record == nil || evt.Record.Action != feed.ActionPush || evt.Record.Author != "alice" {
		t.Fatalf("unexpected record %+v", evt.Record)
	}
	if evt.Metadata["driver"] != "gochannel" {
		t.Fatalf("broker metadata not copied: %+v", evt.Metadata)
	}

	var raw struct {
		Ref string `json:"ref"`
	}
	if err := json.Unmarshal(evt.Payload, &raw); err != nil || raw.Ref != "refs/heads/main" {
		t.Fatalf("payload should carry the provider body, got %s", evt.Payload)
	}
	if evt.Normalized["after"] != "9049f1265b7d61be4a8904a9a27120d2064dab3b" {
		t.Fatalf("normalized payload missing after: %+v", evt.Normalized)
	}
}

func TestDefaultCodecMetadataFallback(t *testing.T) {
	msg := message.NewMessage("2", []byte(`{"ref": "refs/heads/main"}`))
	msg.Metadata.Set("provider", "gitlab")
	msg.Metadata.Set("event", "push")
	msg.Metadata.Set("request_id", "req-55")

	evt, err := DefaultCodec{}.Decode("feed.events", msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Provider != "gitlab" || evt.Type != "push" || evt.RequestID != "req-55" {
		t.Fatalf("metadata fallback not applied: %+v", evt)
	}
	if evt.Record != nil {
		t.Fatalf("expected no record, got %+v", evt.Record)
	}
	if string(evt.Payload) != `{"ref": "refs/heads/main"}` {
		t.Fatalf("payload should fall back to the message body, got %s", evt.Payload)
	}
}

func TestDefaultCodecRejectsNonJSON(t *testing.T) {
	msg := message.NewMessage("3", []byte("not json"))
	if _, err := (DefaultCodec{}).Decode("feed.events", msg); err == nil {
		t.Fatal("expected a decode error")
	}
}
