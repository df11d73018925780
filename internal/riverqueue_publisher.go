package internal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// riverJob is the payload stored in river_job args: the publish topic
// plus the full event envelope, so workers can route the same way
// subscribers on the streaming drivers do.
type riverJob struct {
	Topic string `json:"topic"`
	Event Event  `json:"event"`
}

// riverJobArgs adapts a marshaled riverJob to river's JobArgs. The kind
// is configurable so deployments sharing one jobs table stay apart.
type riverJobArgs struct {
	kind    string
	payload json.RawMessage
}

func (a riverJobArgs) Kind() string { return a.kind }

func (a riverJobArgs) MarshalJSON() ([]byte, error) { return a.payload, nil }

// riverQueuePublisher hands events to a River job queue. The client is
// insert-only; workers run in separate processes.
type riverQueuePublisher struct {
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
	cfg    RiverQueueConfig
}

func newRiverQueuePublisher(cfg RiverQueueConfig) (*riverQueuePublisher, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("riverqueue dsn is required")
	}
	pool, err := pgxpool.New(context.Background(), cfg.DSN)
	if err != nil {
		return nil, err
	}
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &riverQueuePublisher{pool: pool, client: client, cfg: cfg}, nil
}

// Publish inserts a new job carrying the event envelope.
func (p *riverQueuePublisher) Publish(ctx context.Context, topic string, event Event) error {
	payload, err := json.Marshal(riverJob{Topic: topic, Event: event})
	if err != nil {
		return err
	}

	_, err = p.client.Insert(ctx, riverJobArgs{kind: p.cfg.Kind, payload: payload}, &river.InsertOpts{
		Queue:       p.cfg.Queue,
		MaxAttempts: p.cfg.MaxAttempts,
		Priority:    p.cfg.Priority,
		Tags:        p.cfg.Tags,
	})
	return err
}

// Close releases the underlying connection pool.
func (p *riverQueuePublisher) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// PublishForDrivers is a convenience method that calls Publish.
func (p *riverQueuePublisher) PublishForDrivers(ctx context.Context, topic string, event Event, drivers []string) error {
	return p.Publish(ctx, topic, event)
}
