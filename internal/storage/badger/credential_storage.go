package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CredentialStorage implements interfaces.CredentialStore on Badger. Records
// are keyed "<integration>:<account>" and written as whole-record upserts, so
// a reader sees either the previous record or the new one, never a mix.
type CredentialStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	// Per-key write serialization. Badger commits are already atomic; the
	// locks keep concurrent Put calls for the same key ordered without
	// blocking writes to other keys.
	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewCredentialStorage creates a new CredentialStorage instance
func NewCredentialStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CredentialStore {
	return &CredentialStorage{
		db:       db,
		logger:   logger,
		keyLocks: make(map[string]*sync.Mutex),
	}
}

func (s *CredentialStorage) lockFor(key models.AccountKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.keyLocks[key.String()]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key.String()] = l
	}
	return l
}

func (s *CredentialStorage) Get(ctx context.Context, key models.AccountKey) (*models.CredentialRecord, error) {
	var record models.CredentialRecord
	if err := s.db.Store().Get(key.String(), &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credentials for %s: %w", key, err)
	}
	return &record, nil
}

func (s *CredentialStorage) Put(ctx context.Context, record *models.CredentialRecord) error {
	if record.Key.Integration == "" || record.Key.Account == "" {
		return fmt.Errorf("credential record requires a complete account key")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	l := s.lockFor(record.Key)
	l.Lock()
	defer l.Unlock()

	now := time.Now().Unix()
	if record.CreatedAt == 0 {
		if existing, err := s.Get(ctx, record.Key); err == nil {
			record.CreatedAt = existing.CreatedAt
		} else {
			record.CreatedAt = now
		}
	}
	record.UpdatedAt = now

	if err := s.db.Store().Upsert(record.Key.String(), record); err != nil {
		return fmt.Errorf("failed to store credentials for %s: %w", record.Key, err)
	}

	s.logger.Debug().
		Str("key", record.Key.String()).
		Str("kind", string(record.Kind)).
		Msg("Credential record stored")
	return nil
}

func (s *CredentialStorage) Delete(ctx context.Context, key models.AccountKey) error {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	if err := s.db.Store().Delete(key.String(), &models.CredentialRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete credentials for %s: %w", key, err)
	}
	return nil
}

func (s *CredentialStorage) ListKeys(ctx context.Context, integration string) ([]models.AccountKey, error) {
	var records []models.CredentialRecord
	query := badgerhold.Where("Key").MatchFunc(func(ra *badgerhold.RecordAccess) (bool, error) {
		record, ok := ra.Record().(*models.CredentialRecord)
		if !ok {
			return false, nil
		}
		return integration == "" || record.Key.Integration == integration, nil
	})
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	keys := make([]models.AccountKey, len(records))
	for i := range records {
		keys[i] = records[i].Key
	}
	return keys, nil
}

func (s *CredentialStorage) Close() error {
	return s.db.Close()
}
