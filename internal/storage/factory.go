package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/storage/badger"
)

// NewCredentialStore creates the durable credential store based on config.
func NewCredentialStore(logger arbor.ILogger, config *common.Config) (interfaces.CredentialStore, error) {
	db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}
	return badger.NewCredentialStorage(db, logger), nil
}
