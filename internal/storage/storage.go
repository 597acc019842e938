package storage

import (
	"context"

	"github.com/panops/panorama-address-manager/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	CountAPIKeys(ctx context.Context) (int, error)

	// Batches
	CreateBatch(ctx context.Context, batch *domain.Batch) error
	GetBatch(ctx context.Context, id string) (*domain.Batch, error)
	ListBatches(ctx context.Context) ([]*domain.Batch, error)
	UpdateBatch(ctx context.Context, batch *domain.Batch) error
	DeleteBatch(ctx context.Context, id string) error

	// Customers
	CreateCustomer(ctx context.Context, customer *domain.Customer) error
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByObjectName(ctx context.Context, objectName string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]*domain.Customer, error)
	ListCustomersForBatch(ctx context.Context, batchID string) ([]*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer *domain.Customer) error
	DeleteCustomer(ctx context.Context, id string) error

	// Rejected rows
	CreateRejectedRow(ctx context.Context, row *domain.RejectedRow) error
	ListRejectedRowsForBatch(ctx context.Context, batchID string) ([]*domain.RejectedRow, error)

	// Push versions
	CreatePushVersion(ctx context.Context, version *domain.PushVersion) error
	GetPushVersion(ctx context.Context, id string) (*domain.PushVersion, error)
	GetLatestPushVersion(ctx context.Context) (*domain.PushVersion, error)
	ListPushVersions(ctx context.Context, limit, offset int) ([]*domain.PushVersion, error)
	UpdatePushVersion(ctx context.Context, version *domain.PushVersion) error

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage
	Commit() error
	Rollback() error
}
