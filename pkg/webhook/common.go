// Package webhook terminates provider webhook deliveries. Each handler
// verifies and parses its provider's hook format, normalizes the events
// that belong in the feed into records, stores them with duplicate
// suppression, and publishes an envelope for downstream consumers.
package webhook

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"gitfeed/internal"
	"gitfeed/pkg/feed"
)

const (
	statusSuccess   = "success"
	statusDuplicate = "duplicate"
)

// Options carries the collaborators shared by every provider handler.
type Options struct {
	Rules        *internal.RuleEngine
	Publisher    internal.Publisher
	Recorder     *feed.Recorder
	Logger       *log.Logger
	MaxBody      int64
	DebugEvents  bool
	DefaultTopic string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.DefaultTopic == "" {
		o.DefaultTopic = "feed.events"
	}
	return o
}

// emit publishes the envelope to the default topic and to every
// rule-selected target.
func (o Options) emit(ctx context.Context, logger *log.Logger, event *internal.Event) {
	if o.Publisher == nil {
		return
	}

	targets := []internal.Match{{Topic: o.DefaultTopic}}
	if o.Rules != nil {
		matches, err := o.Rules.Evaluate(event)
		if err != nil {
			logger.Printf("rule evaluation failed: %v", err)
		}
		targets = append(targets, matches...)
	}

	topics := make([]string, 0, len(targets))
	for _, match := range targets {
		topics = append(topics, match.Topic)
	}
	logger.Printf("event provider=%s name=%s topics=%v", event.Provider, event.Name, topics)

	for _, match := range targets {
		if err := o.Publisher.PublishForDrivers(ctx, match.Topic, *event, match.Drivers); err != nil {
			logger.Printf("publish %s failed: %v", match.Topic, err)
		}
	}
}

// record stores a normalized record and reports the response status:
// "success" for a new row, "duplicate" for a suppressed one, "" when
// there is nothing to store.
func (o Options) record(ctx context.Context, rec *feed.Record) (string, error) {
	if rec == nil || o.Recorder == nil {
		return "", nil
	}
	stored, err := o.Recorder.Record(ctx, *rec)
	if err != nil {
		return "", err
	}
	if !stored {
		internal.IncDuplicate(string(rec.Action))
		return statusDuplicate, nil
	}
	internal.IncStored(string(rec.Action))
	return statusSuccess, nil
}

func statusJSON(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// logDebugEvent dumps the raw payload, truncated to keep log lines sane.
func logDebugEvent(logger *log.Logger, provider, event string, raw []byte) {
	const maxDump = 2048
	dump := raw
	suffix := ""
	if len(dump) > maxDump {
		dump = dump[:maxDump]
		suffix = " (truncated)"
	}
	logger.Printf("%s event %q payload%s: %s", provider, event, suffix, dump)
}

// canonicalTimestamp rewrites provider timestamp variants into the
// second-precision ISO-8601 form the feed formatter understands.
// Unrecognized values pass through verbatim; the display layer has a
// defined fallback for those.
func canonicalTimestamp(value string) string {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05 MST",
		"2006-01-02 15:04:05 -0700",
	} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.Format("2006-01-02T15:04:05-07:00")
		}
	}
	return value
}
