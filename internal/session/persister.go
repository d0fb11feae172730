// Package session persists the logged-in session record between runs.
// Every backend stores exactly one record under a fixed key.
package session

import (
	"context"
	"fmt"
	"sync"

	"feedsync/internal/cache"
	"feedsync/internal/config"
	"feedsync/internal/database"
	"feedsync/internal/models"
)

// Persister loads, saves and clears the session record.
// Load returns (nil, nil) when no session is stored.
type Persister interface {
	Load(ctx context.Context) (*models.SessionRecord, error)
	Save(ctx context.Context, rec *models.SessionRecord) error
	Clear(ctx context.Context) error
}

// Open builds the persister selected by SESSION_BACKEND.
func Open(ctx context.Context, cfg *config.Config) (Persister, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendFile:
		return NewFilePersister(cfg.SessionPath), nil
	case config.SessionBackendRedis:
		rdb, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("session redis: %w", err)
		}
		return NewRedisPersister(rdb, cfg.SessionKey), nil
	case config.SessionBackendSQL:
		db, err := database.Open(cfg.SessionDSN)
		if err != nil {
			return nil, fmt.Errorf("session database: %w", err)
		}
		return NewSQLPersister(ctx, db, cfg.SessionKey)
	case config.SessionBackendMemory:
		return NewMemoryPersister(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// MemoryPersister keeps the record in process memory.
type MemoryPersister struct {
	mu  sync.Mutex
	rec *models.SessionRecord
}

// NewMemoryPersister returns an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (m *MemoryPersister) Load(_ context.Context) (*models.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil, nil
	}
	rec := *m.rec
	return &rec, nil
}

func (m *MemoryPersister) Save(_ context.Context, rec *models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.rec = &cp
	return nil
}

func (m *MemoryPersister) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	return nil
}
