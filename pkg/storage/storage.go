// Package storage selects and opens the event store backend.
package storage

import (
	"strings"

	"gitfeed/pkg/feed"
	"gitfeed/pkg/storage/events"
	"gitfeed/pkg/storage/memory"
)

// Config selects the event store backend and its connection settings.
type Config struct {
	Driver      string
	DSN         string
	Dialect     string
	Table       string
	AutoMigrate bool
}

// Open creates the configured event store. The "memory" driver needs no DSN
// and keeps records in process; everything else goes through GORM.
func Open(cfg Config) (feed.Store, error) {
	if strings.ToLower(strings.TrimSpace(cfg.Driver)) == "memory" {
		return memory.New(), nil
	}
	return events.Open(events.Config{
		Driver:      cfg.Driver,
		DSN:         cfg.DSN,
		Dialect:     cfg.Dialect,
		Table:       cfg.Table,
		AutoMigrate: cfg.AutoMigrate,
	})
}
