package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/panops/panorama-address-manager/internal/domain"
	"github.com/panops/panorama-address-manager/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing.
type Store struct {
	mu sync.RWMutex

	apiKeys      map[string]*domain.APIKey
	batches      map[string]*domain.Batch
	customers    map[string]*domain.Customer    // key: id
	rejectedRows map[string]*domain.RejectedRow // key: id
	pushVersions map[string]*domain.PushVersion // key: id

	customerOrder []string // insertion order of customer IDs
	rejectedOrder []string // insertion order of rejected row IDs
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		apiKeys:      make(map[string]*domain.APIKey),
		batches:      make(map[string]*domain.Batch),
		customers:    make(map[string]*domain.Customer),
		rejectedRows: make(map[string]*domain.RejectedRow),
		pushVersions: make(map[string]*domain.PushVersion),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return &Tx{store: s}, nil
}

// Tx is a no-op transaction for in-memory store.
type Tx struct {
	store *Store
}

func (t *Tx) Commit() error   { return nil }
func (t *Tx) Rollback() error { return nil }
func (t *Tx) Close() error    { return nil }
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apiKeys[key.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *key
	s.apiKeys[key.ID] = &cp
	return nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.apiKeys {
		if key.KeyHash == keyHash {
			cp := *key
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]*domain.APIKey, 0, len(s.apiKeys))
	for _, key := range s.apiKeys {
		cp := *key
		keys = append(keys, &cp)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apiKeys[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.apiKeys[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	return nil
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apiKeys), nil
}

// ============================================
// Batches
// ============================================

func (s *Store) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *batch
	s.batches[batch.ID] = &cp
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *batch
	return &cp, nil
}

func (s *Store) ListBatches(ctx context.Context) ([]*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batches := make([]*domain.Batch, 0, len(s.batches))
	for _, batch := range s.batches {
		cp := *batch
		batches = append(batches, &cp)
	}
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].CreatedAt.After(batches[j].CreatedAt)
	})
	return batches, nil
}

func (s *Store) UpdateBatch(ctx context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID]; !ok {
		return domain.ErrNotFound
	}
	batch.UpdatedAt = time.Now()
	cp := *batch
	s.batches[batch.ID] = &cp
	return nil
}

func (s *Store) DeleteBatch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.batches, id)
	for cid, c := range s.customers {
		if c.BatchID == id {
			delete(s.customers, cid)
		}
	}
	s.customerOrder = filterIDs(s.customerOrder, s.customers)
	for rid, r := range s.rejectedRows {
		if r.BatchID == id {
			delete(s.rejectedRows, rid)
		}
	}
	s.rejectedOrder = filterRejectedIDs(s.rejectedOrder, s.rejectedRows)
	return nil
}

func filterIDs(order []string, live map[string]*domain.Customer) []string {
	kept := order[:0]
	for _, id := range order {
		if _, ok := live[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}

func filterRejectedIDs(order []string, live map[string]*domain.RejectedRow) []string {
	kept := order[:0]
	for _, id := range order {
		if _, ok := live[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}

// ============================================
// Customers
// ============================================

func (s *Store) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[customer.ID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, c := range s.customers {
		if c.ObjectName == customer.ObjectName {
			return domain.ErrAlreadyExists
		}
	}
	cp := *customer
	cp.Tags = append([]string(nil), customer.Tags...)
	s.customers[customer.ID] = &cp
	s.customerOrder = append(s.customerOrder, customer.ID)
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *customer
	cp.Tags = append([]string(nil), customer.Tags...)
	return &cp, nil
}

func (s *Store) GetCustomerByObjectName(ctx context.Context, objectName string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, customer := range s.customers {
		if customer.ObjectName == objectName {
			cp := *customer
			cp.Tags = append([]string(nil), customer.Tags...)
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customers := make([]*domain.Customer, 0, len(s.customers))
	for _, id := range s.customerOrder {
		customer, ok := s.customers[id]
		if !ok {
			continue
		}
		cp := *customer
		cp.Tags = append([]string(nil), customer.Tags...)
		customers = append(customers, &cp)
	}
	return customers, nil
}

func (s *Store) ListCustomersForBatch(ctx context.Context, batchID string) ([]*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var customers []*domain.Customer
	for _, id := range s.customerOrder {
		customer, ok := s.customers[id]
		if !ok || customer.BatchID != batchID {
			continue
		}
		cp := *customer
		cp.Tags = append([]string(nil), customer.Tags...)
		customers = append(customers, &cp)
	}
	return customers, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[customer.ID]; !ok {
		return domain.ErrNotFound
	}
	for _, c := range s.customers {
		if c.ID != customer.ID && c.ObjectName == customer.ObjectName {
			return domain.ErrAlreadyExists
		}
	}
	customer.UpdatedAt = time.Now()
	cp := *customer
	cp.Tags = append([]string(nil), customer.Tags...)
	s.customers[customer.ID] = &cp
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.customers, id)
	s.customerOrder = filterIDs(s.customerOrder, s.customers)
	return nil
}

// ============================================
// Rejected rows
// ============================================

func (s *Store) CreateRejectedRow(ctx context.Context, row *domain.RejectedRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rejectedRows[row.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *row
	s.rejectedRows[row.ID] = &cp
	s.rejectedOrder = append(s.rejectedOrder, row.ID)
	return nil
}

func (s *Store) ListRejectedRowsForBatch(ctx context.Context, batchID string) ([]*domain.RejectedRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []*domain.RejectedRow
	for _, id := range s.rejectedOrder {
		row, ok := s.rejectedRows[id]
		if !ok || row.BatchID != batchID {
			continue
		}
		cp := *row
		rows = append(rows, &cp)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].RowNumber < rows[j].RowNumber
	})
	return rows, nil
}

// ============================================
// Push versions
// ============================================

func (s *Store) CreatePushVersion(ctx context.Context, version *domain.PushVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pushVersions[version.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *version
	s.pushVersions[version.ID] = &cp
	return nil
}

func (s *Store) GetPushVersion(ctx context.Context, id string) (*domain.PushVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	version, ok := s.pushVersions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *version
	return &cp, nil
}

func (s *Store) GetLatestPushVersion(ctx context.Context) (*domain.PushVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.PushVersion
	for _, version := range s.pushVersions {
		if latest == nil || version.VersionNumber > latest.VersionNumber {
			latest = version
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) ListPushVersions(ctx context.Context, limit, offset int) ([]*domain.PushVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := make([]*domain.PushVersion, 0, len(s.pushVersions))
	for _, version := range s.pushVersions {
		cp := *version
		versions = append(versions, &cp)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber > versions[j].VersionNumber
	})
	if offset >= len(versions) {
		return nil, nil
	}
	versions = versions[offset:]
	if limit > 0 && limit < len(versions) {
		versions = versions[:limit]
	}
	return versions, nil
}

func (s *Store) UpdatePushVersion(ctx context.Context, version *domain.PushVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pushVersions[version.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *version
	s.pushVersions[version.ID] = &cp
	return nil
}

// ============================================
// Tx forwarding
// ============================================

func (t *Tx) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return t.store.CreateAPIKey(ctx, key)
}
func (t *Tx) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return t.store.GetAPIKeyByHash(ctx, keyHash)
}
func (t *Tx) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	return t.store.ListAPIKeys(ctx)
}
func (t *Tx) DeleteAPIKey(ctx context.Context, id string) error {
	return t.store.DeleteAPIKey(ctx, id)
}
func (t *Tx) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	return t.store.UpdateAPIKeyLastUsed(ctx, id)
}
func (t *Tx) CountAPIKeys(ctx context.Context) (int, error) {
	return t.store.CountAPIKeys(ctx)
}
func (t *Tx) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	return t.store.CreateBatch(ctx, batch)
}
func (t *Tx) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	return t.store.GetBatch(ctx, id)
}
func (t *Tx) ListBatches(ctx context.Context) ([]*domain.Batch, error) {
	return t.store.ListBatches(ctx)
}
func (t *Tx) UpdateBatch(ctx context.Context, batch *domain.Batch) error {
	return t.store.UpdateBatch(ctx, batch)
}
func (t *Tx) DeleteBatch(ctx context.Context, id string) error {
	return t.store.DeleteBatch(ctx, id)
}
func (t *Tx) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	return t.store.CreateCustomer(ctx, customer)
}
func (t *Tx) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return t.store.GetCustomer(ctx, id)
}
func (t *Tx) GetCustomerByObjectName(ctx context.Context, objectName string) (*domain.Customer, error) {
	return t.store.GetCustomerByObjectName(ctx, objectName)
}
func (t *Tx) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	return t.store.ListCustomers(ctx)
}
func (t *Tx) ListCustomersForBatch(ctx context.Context, batchID string) ([]*domain.Customer, error) {
	return t.store.ListCustomersForBatch(ctx, batchID)
}
func (t *Tx) UpdateCustomer(ctx context.Context, customer *domain.Customer) error {
	return t.store.UpdateCustomer(ctx, customer)
}
func (t *Tx) DeleteCustomer(ctx context.Context, id string) error {
	return t.store.DeleteCustomer(ctx, id)
}
func (t *Tx) CreateRejectedRow(ctx context.Context, row *domain.RejectedRow) error {
	return t.store.CreateRejectedRow(ctx, row)
}
func (t *Tx) ListRejectedRowsForBatch(ctx context.Context, batchID string) ([]*domain.RejectedRow, error) {
	return t.store.ListRejectedRowsForBatch(ctx, batchID)
}
func (t *Tx) CreatePushVersion(ctx context.Context, version *domain.PushVersion) error {
	return t.store.CreatePushVersion(ctx, version)
}
func (t *Tx) GetPushVersion(ctx context.Context, id string) (*domain.PushVersion, error) {
	return t.store.GetPushVersion(ctx, id)
}
func (t *Tx) GetLatestPushVersion(ctx context.Context) (*domain.PushVersion, error) {
	return t.store.GetLatestPushVersion(ctx)
}
func (t *Tx) ListPushVersions(ctx context.Context, limit, offset int) ([]*domain.PushVersion, error) {
	return t.store.ListPushVersions(ctx, limit, offset)
}
func (t *Tx) UpdatePushVersion(ctx context.Context, version *domain.PushVersion) error {
	return t.store.UpdatePushVersion(ctx, version)
}
