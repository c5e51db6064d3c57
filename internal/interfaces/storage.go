package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/claviger/internal/models"
)

// ErrNotFound is returned by CredentialStore.Get when no record exists for
// the given key.
var ErrNotFound = errors.New("credential not found")

// CredentialStore is the durable keyed store of credential records. Put is an
// atomic full replace, durable before it returns. Concurrent puts for the
// same key are serialized; different keys proceed independently, and Get
// never blocks on an in-flight Put for a different key.
type CredentialStore interface {
	Get(ctx context.Context, key models.AccountKey) (*models.CredentialRecord, error)
	Put(ctx context.Context, record *models.CredentialRecord) error
	Delete(ctx context.Context, key models.AccountKey) error
	ListKeys(ctx context.Context, integration string) ([]models.AccountKey, error)
	Close() error
}
