package state

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/termfx/pforge/core"
	"github.com/termfx/pforge/db"
	"github.com/termfx/pforge/models"
)

// sweepInterval bounds how long an expired row can linger before the
// background compaction reclaims it.
const sweepInterval = time.Minute

// SQLiteStore is the persistent backend: an embedded on-disk tree whose
// values survive process restart. TTL is emulated by storing the unix
// millisecond deadline alongside the value and filtering on read.
type SQLiteStore struct {
	db *gorm.DB

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// NewSQLiteStore opens (or creates) the store at dsn. File paths and
// libsql URLs are both accepted.
func NewSQLiteStore(dsn string, debug bool) (*SQLiteStore, error) {
	database, err := db.Open(dsn, db.Options{Debug: debug})
	if err != nil {
		return nil, core.Wrap(core.KindConfig, "open state database", err)
	}
	return newSQLiteStore(database), nil
}

// NewSQLiteStoreWithDB wraps an existing connection; the caller keeps
// ownership of migrations.
func NewSQLiteStoreWithDB(database *gorm.DB) *SQLiteStore {
	return newSQLiteStore(database)
}

func newSQLiteStore(database *gorm.DB) *SQLiteStore {
	sweepCtx, cancel := context.WithCancel(context.Background())
	store := &SQLiteStore{
		db:          database,
		sweepCancel: cancel,
		sweepDone:   make(chan struct{}),
	}
	go store.sweepLoop(sweepCtx)
	return store
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.StateEntry
	err := s.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, core.FromIO(err)
	}
	if entry.ExpiresAt != nil && expired(*entry.ExpiresAt) {
		// Lazy eviction; the sweep would get it eventually.
		s.db.WithContext(ctx).Delete(&models.StateEntry{}, "key = ?", key)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := models.StateEntry{Key: key, Value: value}
	if deadline := deadlineFor(ttl); deadline != 0 {
		entry.ExpiresAt = &deadline
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return core.FromIO(err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&models.StateEntry{}, "key = ?", key).Error; err != nil {
		return core.FromIO(err)
	}
	return nil
}

// Exists implements Store.
func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Close stops the sweeper and closes the underlying connection.
func (s *SQLiteStore) Close() error {
	s.sweepCancel()
	<-s.sweepDone

	sqlDB, err := s.db.DB()
	if err != nil {
		return core.FromIO(err)
	}
	return sqlDB.Close()
}

// sweepLoop periodically removes expired rows.
func (s *SQLiteStore) sweepLoop(ctx context.Context) {
	defer close(s.sweepDone)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UnixMilli()
			s.db.WithContext(ctx).
				Where("expires_at IS NOT NULL AND expires_at <= ?", now).
				Delete(&models.StateEntry{})
		}
	}
}
