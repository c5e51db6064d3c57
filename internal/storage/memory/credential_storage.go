// Package memory provides an in-memory CredentialStore used in tests and
// anywhere durability is not required.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/models"
)

// CredentialStorage is a map-backed CredentialStore. Records are stored as
// encoded snapshots so readers never observe later mutations by the writer.
type CredentialStorage struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewCredentialStorage creates an empty in-memory store.
func NewCredentialStorage() interfaces.CredentialStore {
	return &CredentialStorage{
		records: make(map[string][]byte),
	}
}

func (s *CredentialStorage) Get(ctx context.Context, key models.AccountKey) (*models.CredentialRecord, error) {
	s.mu.RLock()
	data, ok := s.records[key.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, interfaces.ErrNotFound
	}

	var record models.CredentialRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode credentials for %s: %w", key, err)
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

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode credentials for %s: %w", record.Key, err)
	}

	s.mu.Lock()
	s.records[record.Key.String()] = data
	s.mu.Unlock()
	return nil
}

func (s *CredentialStorage) Delete(ctx context.Context, key models.AccountKey) error {
	s.mu.Lock()
	delete(s.records, key.String())
	s.mu.Unlock()
	return nil
}

func (s *CredentialStorage) ListKeys(ctx context.Context, integration string) ([]models.AccountKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []models.AccountKey
	for raw := range s.records {
		key, err := models.ParseAccountKey(raw)
		if err != nil {
			continue
		}
		if integration == "" || key.Integration == integration {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *CredentialStorage) Close() error {
	return nil
}
