package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// kvEntry represents a row in the database
type kvEntry struct {
	Key       string `gorm:"primaryKey"`
	Value     []byte
	ExpiresAt *time.Time `gorm:"index"`
}

func (kvEntry) TableName() string {
	return "kv_entries"
}

// DatabaseConn is a Conn storing entries in a SQL table through gorm.
// Credentials belong in the DSN, so Auth is not supported.
type DatabaseConn struct {
	db     *gorm.DB
	events *notifier
}

var _ Conn = (*DatabaseConn)(nil)

// NewDatabaseConn connects to postgres using dsn
func NewDatabaseConn(dsn string) (*DatabaseConn, error) {
	return OpenDatabaseConn(postgres.Open(dsn))
}

// OpenDatabaseConn opens a DatabaseConn on any gorm dialector and migrates
// the entry table
func OpenDatabaseConn(dialector gorm.Dialector) (*DatabaseConn, error) {
	db, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-create table if needed
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &DatabaseConn{db: db, events: newNotifier()}, nil
}

// live restricts a query to entries that have not expired
func live(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Where("(expires_at IS NULL OR expires_at > ?)", now)
}

func (ds *DatabaseConn) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e kvEntry
	err := live(ds.db.WithContext(ctx), time.Now().UTC()).Where("key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Value, true, nil
}

// Set upserts the entry; value and expiry are written in one statement
func (ds *DatabaseConn) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (string, error) {
	e := kvEntry{Key: key, Value: value}
	if ttl > 0 {
		expiresAt := time.Now().UTC().Add(ttl)
		e.ExpiresAt = &expiresAt
	}

	err := ds.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
		}).
		Create(&e).Error
	if err != nil {
		return "", err
	}
	return "OK", nil
}

func (ds *DatabaseConn) Del(ctx context.Context, key string) (int64, error) {
	return ds.del(ds.db.WithContext(ctx), key, time.Now().UTC())
}

func (ds *DatabaseConn) del(tx *gorm.DB, key string, now time.Time) (int64, error) {
	res := live(tx, now).Where("key = ?", key).Delete(&kvEntry{})
	return res.RowsAffected, res.Error
}

// DelBatch deletes all keys inside one transaction
func (ds *DatabaseConn) DelBatch(ctx context.Context, keys []string) ([]int64, error) {
	deleted := make([]int64, len(keys))
	now := time.Now().UTC()
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, key := range keys {
			n, err := ds.del(tx, key, now)
			if err != nil {
				return err
			}
			deleted[i] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// FlushDB deletes every row of the entry table
func (ds *DatabaseConn) FlushDB(ctx context.Context) (string, error) {
	err := ds.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&kvEntry{}).Error
	if err != nil {
		return "", err
	}
	return "OK", nil
}

func (ds *DatabaseConn) TTL(ctx context.Context, key string) (time.Duration, error) {
	var e kvEntry
	err := live(ds.db.WithContext(ctx), time.Now().UTC()).Where("key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KeyAbsent, nil
	}
	if err != nil {
		return 0, err
	}
	if e.ExpiresAt == nil {
		return NoExpiration, nil
	}
	return time.Until(*e.ExpiresAt), nil
}

func (ds *DatabaseConn) Auth(context.Context, string) error {
	return fmt.Errorf("%w: database credentials are part of the DSN", ErrUnsupported)
}

// Subscribe registers l and reports the current reachability of the database
func (ds *DatabaseConn) Subscribe(l Listener) {
	ds.events.add(l)

	sqlDB, err := ds.db.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		l.Disconnected(err)
		return
	}
	l.Connected()
}

// CleanupExpired removes rows whose expiry has passed
func (ds *DatabaseConn) CleanupExpired(ctx context.Context) error {
	return ds.db.WithContext(ctx).Delete(&kvEntry{}, "expires_at <= ?", time.Now().UTC()).Error
}

// Close closes the database connection
func (ds *DatabaseConn) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	ds.events.Disconnected(ErrClosed)
	return nil
}
