package feed

import "context"

// Store is the persistence capability the event pipeline depends on.
// Implementations must enforce a unique index on (request_id, action) so
// concurrent identical deliveries cannot both insert.
type Store interface {
	// FindByKey returns the stored record for a dedup key, or nil when none
	// exists.
	FindByKey(ctx context.Context, requestID string, action Action) (*Record, error)
	// Insert appends a record. It reports false, without error, when a record
	// with the same (request_id, action) is already present.
	Insert(ctx context.Context, record Record) (bool, error)
	// RecentEvents returns up to limit records ordered by the stored
	// timestamp string, descending.
	RecentEvents(ctx context.Context, limit int) ([]Record, error)
	Ping(ctx context.Context) error
	Close() error
}
