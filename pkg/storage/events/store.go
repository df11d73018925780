package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitfeed/pkg/feed"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config mirrors the storage configuration for the events table.
type Config struct {
	Driver      string
	DSN         string
	Dialect     string
	Table       string
	AutoMigrate bool
}

// Store implements feed.Store on top of GORM.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	RequestID  string    `gorm:"column:request_id;size:128;not null;uniqueIndex:idx_event_key,priority:1"`
	Action     string    `gorm:"column:action;size:32;not null;uniqueIndex:idx_event_key,priority:2"`
	Author     string    `gorm:"column:author;size:255;not null"`
	FromBranch string    `gorm:"column:from_branch;size:255"`
	ToBranch   string    `gorm:"column:to_branch;size:255"`
	Timestamp  string    `gorm:"column:timestamp;size:64;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Open creates a GORM-backed event store.
func Open(cfg Config) (*Store, error) {
	if cfg.Driver == "" && cfg.Dialect == "" {
		return nil, errors.New("storage driver or dialect is required")
	}
	if cfg.DSN == "" {
		return nil, errors.New("storage dsn is required")
	}
	driver := normalizeDriver(cfg.Driver)
	if driver == "" {
		driver = normalizeDriver(cfg.Dialect)
	}
	if driver == "" {
		return nil, errors.New("unsupported storage driver")
	}

	gormDB, err := openGorm(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	table := cfg.Table
	if table == "" {
		table = "events"
	}
	store := &Store{
		db:    gormDB,
		table: table,
	}
	if cfg.AutoMigrate {
		if err := store.migrate(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Close closes the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the underlying DB connection.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// FindByKey fetches an event by its (request_id, action) dedup key.
func (s *Store) FindByKey(ctx context.Context, requestID string, action feed.Action) (*feed.Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	var data row
	err := s.tableDB().
		WithContext(ctx).
		Where("request_id = ? AND action = ?", requestID, string(action)).
		Take(&data).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record := fromRow(data)
	return &record, nil
}

// Insert appends an event. The composite unique index on (request_id,
// action) collapses concurrent duplicate deliveries into a single row; a
// suppressed write is reported as inserted=false, not an error.
func (s *Store) Insert(ctx context.Context, record feed.Record) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store is not initialized")
	}
	if record.RequestID == "" || record.Action == "" {
		return false, errors.New("request_id and action are required")
	}

	data := toRow(record)
	res := s.tableDB().
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}, {Name: "action"}},
			DoNothing: true,
		}).
		Create(&data)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RecentEvents returns up to limit events ordered by their source timestamp,
// newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]feed.Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if limit <= 0 {
		limit = 10
	}
	var data []row
	err := s.tableDB().
		WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Limit(limit).
		Find(&data).Error
	if err != nil {
		return nil, err
	}
	records := make([]feed.Record, 0, len(data))
	for _, item := range data {
		records = append(records, fromRow(item))
	}
	return records, nil
}

func (s *Store) migrate() error {
	return s.tableDB().AutoMigrate(&row{})
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}

func toRow(record feed.Record) row {
	return row{
		RequestID:  record.RequestID,
		Action:     string(record.Action),
		Author:     record.Author,
		FromBranch: record.FromBranch,
		ToBranch:   record.ToBranch,
		Timestamp:  record.Timestamp,
	}
}

func fromRow(data row) feed.Record {
	return feed.Record{
		RequestID:  data.RequestID,
		Action:     feed.Action(data.Action),
		Author:     data.Author,
		FromBranch: data.FromBranch,
		ToBranch:   data.ToBranch,
		Timestamp:  data.Timestamp,
	}
}

func normalizeDriver(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return ""
	}
}

func openGorm(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
