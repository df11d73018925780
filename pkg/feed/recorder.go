package feed

import (
	"context"
	"errors"
	"log"
)

// Recorder applies the deduplication gate in front of a Store: a candidate
// record is persisted only when no record with the same (request_id, action)
// exists. Duplicates are not errors; they are logged and dropped.
type Recorder struct {
	store  Store
	logger *log.Logger
}

// NewRecorder creates a Recorder writing duplicate/store log lines to logger.
func NewRecorder(store Store, logger *log.Logger) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{store: store, logger: logger}, nil
}

// Record persists rec unless its dedup key is already present. It reports
// whether the record was stored.
func (r *Recorder) Record(ctx context.Context, rec Record) (bool, error) {
	existing, err := r.store.FindByKey(ctx, rec.RequestID, rec.Action)
	if err != nil {
		return false, err
	}
	if existing != nil {
		r.logger.Printf("duplicate event ignored: %s %s", rec.Action, rec.RequestID)
		return false, nil
	}
	inserted, err := r.store.Insert(ctx, rec)
	if err != nil {
		return false, err
	}
	if !inserted {
		// Lost a concurrent-delivery race; the store's unique index kept the
		// first write.
		r.logger.Printf("duplicate event ignored: %s %s", rec.Action, rec.RequestID)
		return false, nil
	}
	r.logger.Printf("stored event: %s by %s", rec.Action, rec.Author)
	return true, nil
}
