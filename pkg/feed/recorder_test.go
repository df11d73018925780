package feed

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
)

// stubStore is an in-memory Store for recorder tests.
type stubStore struct {
	records []Record
}

func (s *stubStore) FindByKey(ctx context.Context, requestID string, action Action) (*Record, error) {
	for i := range s.records {
		if s.records[i].RequestID == requestID && s.records[i].Action == action {
			return &s.records[i], nil
		}
	}
	return nil, nil
}

func (s *stubStore) Insert(ctx context.Context, record Record) (bool, error) {
	for _, rec := range s.records {
		if rec.RequestID == record.RequestID && rec.Action == record.Action {
			return false, nil
		}
	}
	s.records = append(s.records, record)
	return true, nil
}

func (s *stubStore) RecentEvents(ctx context.Context, limit int) ([]Record, error) {
	return s.records, nil
}

func (s *stubStore) Ping(ctx context.Context) error { return nil }
func (s *stubStore) Close() error                   { return nil }

// blindStore never sees existing rows on lookup, forcing the insert guard to
// catch the duplicate as a concurrent delivery would.
type blindStore struct {
	stubStore
}

func (s *blindStore) FindByKey(ctx context.Context, requestID string, action Action) (*Record, error) {
	return nil, nil
}

func TestRecorderStoresOnce(t *testing.T) {
	store := &stubStore{}
	var buf bytes.Buffer
	recorder, err := NewRecorder(store, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	rec := Record{RequestID: "abc123", Author: "alice", Action: ActionPush, ToBranch: "main", Timestamp: "2024-03-01T10:15:00Z"}

	stored, err := recorder.Record(context.Background(), rec)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !stored {
		t.Fatalf("expected first delivery to be stored")
	}

	stored, err = recorder.Record(context.Background(), rec)
	if err != nil {
		t.Fatalf("record duplicate: %v", err)
	}
	if stored {
		t.Fatalf("expected duplicate to be dropped")
	}
	if len(store.records) != 1 {
		t.Fatalf("expected exactly one stored record, got %d", len(store.records))
	}
	if !strings.Contains(buf.String(), "duplicate event ignored: PUSH abc123") {
		t.Fatalf("expected duplicate log line, got %q", buf.String())
	}
}

// TestRecorderSameIDDifferentAction checks that the dedup key is the pair,
// not the request id alone.
func TestRecorderSameIDDifferentAction(t *testing.T) {
	store := &stubStore{}
	recorder, err := NewRecorder(store, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	opened := Record{RequestID: "42", Author: "bob", Action: ActionPullRequest, FromBranch: "feature-x", ToBranch: "main", Timestamp: "2024-03-02T08:00:00Z"}
	merged := Record{RequestID: "42", Author: "carol", Action: ActionMerge, FromBranch: "feature-x", ToBranch: "main", Timestamp: "2024-03-03T12:30:00Z"}

	for _, rec := range []Record{opened, merged} {
		stored, err := recorder.Record(context.Background(), rec)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if !stored {
			t.Fatalf("expected %s to be stored", rec.Action)
		}
	}
	if len(store.records) != 2 {
		t.Fatalf("expected two records, got %d", len(store.records))
	}
}

// TestRecorderInsertGuard checks that a duplicate suppressed by the store's
// unique index is reported as a drop, not an error.
func TestRecorderInsertGuard(t *testing.T) {
	store := &blindStore{}
	store.records = append(store.records, Record{RequestID: "abc123", Action: ActionPush})

	var buf bytes.Buffer
	recorder, err := NewRecorder(store, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	stored, err := recorder.Record(context.Background(), Record{RequestID: "abc123", Author: "alice", Action: ActionPush, Timestamp: "2024-03-01T10:15:00Z"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if stored {
		t.Fatalf("expected conflicting insert to be dropped")
	}
	if !strings.Contains(buf.String(), "duplicate event ignored") {
		t.Fatalf("expected duplicate log line, got %q", buf.String())
	}
}
