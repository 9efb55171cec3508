// Package store is the persistent key-value document store backing the song
// library, the play queue and the audio-status snapshot. Each key maps to
// one JSON document; Set replaces the whole document atomically and fans the
// new value out to subscribers.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Well-known document keys.
const (
	KeySongs       = "songs"
	KeyQueueItems  = "queueItems"
	KeySettings    = "settings"
	KeyAudioStatus = "audioStatus"
)

var ErrStoreClosed = errors.New("store is closed")

type document struct {
	Key       string `gorm:"primaryKey;type:varchar(64)"`
	Value     []byte
	UpdatedAt time.Time
}

func (document) TableName() string {
	return "documents"
}

type subscriber struct {
	id       int
	onChange func(raw []byte)
}

type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB

	mu     sync.Mutex
	subs   map[string][]subscriber
	nextID int
	closed bool
}

func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// Single desktop process, keep the pool small.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&document{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Store{
		db:    db,
		sqlDB: sqlDB,
		subs:  make(map[string][]subscriber),
	}, nil
}

// Get unmarshals the document at key into out. The second return reports
// whether the key existed.
func (s *Store) Get(key string, out any) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrStoreClosed
	}
	s.mu.Unlock()

	var doc document
	err := s.db.Where("key = ?", key).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading document %q: %w", key, err)
	}

	if err := json.Unmarshal(doc.Value, out); err != nil {
		return false, fmt.Errorf("decoding document %q: %w", key, err)
	}
	return true, nil
}

// Set replaces the whole document at key and notifies subscribers with the
// new serialized value.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.mu.Unlock()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding document %q: %w", key, err)
	}

	doc := document{Key: key, Value: raw, UpdatedAt: time.Now().UTC()}
	err = s.db.Save(&doc).Error
	if err != nil {
		return fmt.Errorf("writing document %q: %w", key, err)
	}

	s.notify(key, raw)
	return nil
}

// Subscribe registers onChange for the given key. The callback receives the
// full serialized document on every Set. The returned function removes the
// subscription.
func (s *Store) Subscribe(key string, onChange func(raw []byte)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs[key] = append(s.subs[key], subscriber{id: id, onChange: onChange})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.subs[key]
		for i, sub := range list {
			if sub.id == id {
				s.subs[key] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(key string, raw []byte) {
	s.mu.Lock()
	list := make([]subscriber, len(s.subs[key]))
	copy(list, s.subs[key])
	s.mu.Unlock()

	for _, sub := range list {
		sub.onChange(raw)
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
