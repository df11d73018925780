package webhook

import (
	"net/http"
	"testing"

	"gitfeed/pkg/feed"
)

const bitbucketPushBody = `{
	"actor": {"nickname": "emma", "display_name": "Emma"},
	"push": {
		"changes": [
			{"new": {"name": "main", "target": {"hash": "709d658dc5b6d6afcd46049c2f332ee3f515a67d", "date": "2015-06-09T03:34:49+00:00"}}}
		]
	}
}`

func newBitbucketTest(t *testing.T, uuid string) (*BitbucketHandler, *capturePublisher, func(*testing.T) []feed.Record) {
	t.Helper()
	opts, store, pub := newTestOptions(t)
	handler, err := NewBitbucketHandler(uuid, opts)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return handler, pub, func(t *testing.T) []feed.Record { return storedRecords(t, store) }
}

func TestBitbucketPushStores(t *testing.T) {
	handler, pub, records := newBitbucketTest(t, "")

	w := deliver(t, handler, map[string]string{"X-Event-Key": "repo:push"}, bitbucketPushBody)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "success" {
		t.Fatalf("response = %v", body)
	}
	stored := records(t)
	if len(stored) != 1 {
		t.Fatalf("stored %d records, want 1", len(stored))
	}
	rec := stored[0]
	if rec.RequestID != "709d658dc5b6d6afcd46049c2f332ee3f515a67d" {
		t.Errorf("request id = %q", rec.RequestID)
	}
	if rec.Author != "emma" || rec.Action != feed.ActionPush || rec.ToBranch != "main" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Timestamp != "2015-06-09T03:34:49+00:00" {
		t.Errorf("timestamp = %q", rec.Timestamp)
	}
	if topics, _ := pub.published(); len(topics) != 1 {
		t.Fatalf("published topics = %v", topics)
	}
}

func TestBitbucketPushDeletionIgnored(t *testing.T) {
	handler, _, records := newBitbucketTest(t, "")

	w := deliver(t, handler, map[string]string{"X-Event-Key": "repo:push"},
		`{"actor": {"nickname": "emma"}, "push": {"changes": [{"new": null}]}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "ignored" {
		t.Fatalf("response = %v", body)
	}
	if stored := records(t); len(stored) != 0 {
		t.Fatalf("stored %d records, want 0", len(stored))
	}
}

func TestBitbucketPullRequestCreated(t *testing.T) {
	handler, _, records := newBitbucketTest(t, "")

	w := deliver(t, handler, map[string]string{"X-Event-Key": "pullrequest:created"}, `{
		"actor": {"nickname": "emma"},
		"pullrequest": {
			"id": 7,
			"author": {"nickname": "emma"},
			"source": {"branch": {"name": "feature"}},
			"destination": {"branch": {"name": "main"}},
			"created_on": "2015-04-06T15:23:38.179678+00:00",
			"updated_on": "2015-04-06T15:23:38.179678+00:00"
		}
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "success" {
		t.Fatalf("response = %v", body)
	}
	stored := records(t)
	if len(stored) != 1 {
		t.Fatalf("stored %d records, want 1", len(stored))
	}
	rec := stored[0]
	if rec.RequestID != "7" || rec.Action != feed.ActionPullRequest || rec.Author != "emma" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Timestamp != "2015-04-06T15:23:38+00:00" {
		t.Errorf("timestamp = %q, want sub-second precision dropped", rec.Timestamp)
	}
}

func TestBitbucketUUIDFallback(t *testing.T) {
	handler, _, records := newBitbucketTest(t, "hook-uuid")

	w := deliver(t, handler, map[string]string{"X-Event-Key": "repo:push"}, bitbucketPushBody)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "success" {
		t.Fatalf("response = %v", body)
	}
	if stored := records(t); len(stored) != 1 {
		t.Fatalf("stored %d records, want 1", len(stored))
	}
}

func TestBitbucketUUIDMismatch(t *testing.T) {
	handler, _, records := newBitbucketTest(t, "hook-uuid")

	w := deliver(t, handler, map[string]string{
		"X-Event-Key": "repo:push",
		"X-Hook-UUID": "other-uuid",
	}, bitbucketPushBody)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if stored := records(t); len(stored) != 0 {
		t.Fatalf("stored %d records, want 0", len(stored))
	}
}

func TestNormalizeBitbucketFulfilledWithoutActor(t *testing.T) {
	rec, err := normalizeBitbucket("pullrequest:fulfilled", []byte(`{
		"pullrequest": {
			"id": 7,
			"author": {"nickname": "emma"},
			"source": {"branch": {"name": "feature"}},
			"destination": {"branch": {"name": "main"}},
			"created_on": "2015-04-06T15:23:38+00:00",
			"updated_on": "2015-04-08T10:00:00+00:00"
		}
	}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if rec.Action != feed.ActionMerge {
		t.Errorf("action = %q", rec.Action)
	}
	if rec.Author != "Unknown" {
		t.Errorf("author = %q, want Unknown when the actor is absent", rec.Author)
	}
	if rec.Timestamp != "2015-04-08T10:00:00+00:00" {
		t.Errorf("timestamp = %q", rec.Timestamp)
	}
}

func TestNormalizeBitbucketPushSkipsDeletedRefs(t *testing.T) {
	rec, err := normalizeBitbucket("repo:push", []byte(`{
		"actor": {"nickname": "emma"},
		"push": {"changes": [
			{"new": null},
			{"new": {"name": "hotfix", "target": {"hash": "abc123", "date": "2015-06-09T03:34:49+00:00"}}}
		]}
	}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if rec == nil || rec.ToBranch != "hotfix" {
		t.Fatalf("record = %+v, want the first surviving ref", rec)
	}
}
