package sql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/panops/panorama-address-manager/internal/domain"
	"github.com/panops/panorama-address-manager/internal/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Run migrations
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx     *sqlx.Tx
	driver string
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// helper to get the correct database interface
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ============================================
// API Keys
// ============================================

func createAPIKey(ctx context.Context, db dbInterface, key *domain.APIKey) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.LastUsedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return createAPIKey(ctx, s.db, key)
}

func (t *Tx) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return createAPIKey(ctx, t.tx, key)
}

func getAPIKeyByHash(ctx context.Context, db dbInterface, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := db.GetContext(ctx, &key,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at FROM api_keys WHERE key_hash = $1`, keyHash)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &key, err
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return getAPIKeyByHash(ctx, s.db, keyHash)
}

func (t *Tx) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return getAPIKeyByHash(ctx, t.tx, keyHash)
}

func listAPIKeys(ctx context.Context, db dbInterface) ([]*domain.APIKey, error) {
	var keys []*domain.APIKey
	err := db.SelectContext(ctx, &keys,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at FROM api_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	return listAPIKeys(ctx, s.db)
}

func (t *Tx) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	return listAPIKeys(ctx, t.tx)
}

func deleteAPIKey(ctx context.Context, db dbInterface, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	return deleteAPIKey(ctx, s.db, id)
}

func (t *Tx) DeleteAPIKey(ctx context.Context, id string) error {
	return deleteAPIKey(ctx, t.tx, id)
}

func updateAPIKeyLastUsed(ctx context.Context, db dbInterface, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	return updateAPIKeyLastUsed(ctx, s.db, id)
}

func (t *Tx) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	return updateAPIKeyLastUsed(ctx, t.tx, id)
}

func countAPIKeys(ctx context.Context, db dbInterface) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM api_keys`)
	return count, err
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	return countAPIKeys(ctx, s.db)
}

func (t *Tx) CountAPIKeys(ctx context.Context) (int, error) {
	return countAPIKeys(ctx, t.tx)
}

// ============================================
// Batches
// ============================================

func createBatch(ctx context.Context, db dbInterface, batch *domain.Batch) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO batches (id, source, status, accepted_count, rejected_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		batch.ID, batch.Source, batch.Status, batch.AcceptedCount, batch.RejectedCount,
		batch.CreatedAt, batch.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	return createBatch(ctx, s.db, batch)
}

func (t *Tx) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	return createBatch(ctx, t.tx, batch)
}

func getBatch(ctx context.Context, db dbInterface, id string) (*domain.Batch, error) {
	var batch domain.Batch
	err := db.GetContext(ctx, &batch,
		`SELECT id, source, status, accepted_count, rejected_count, created_at, updated_at
		 FROM batches WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &batch, err
}

func (s *Store) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	return getBatch(ctx, s.db, id)
}

func (t *Tx) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	return getBatch(ctx, t.tx, id)
}

func listBatches(ctx context.Context, db dbInterface) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	err := db.SelectContext(ctx, &batches,
		`SELECT id, source, status, accepted_count, rejected_count, created_at, updated_at
		 FROM batches ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (s *Store) ListBatches(ctx context.Context) ([]*domain.Batch, error) {
	return listBatches(ctx, s.db)
}

func (t *Tx) ListBatches(ctx context.Context) ([]*domain.Batch, error) {
	return listBatches(ctx, t.tx)
}

func updateBatch(ctx context.Context, db dbInterface, batch *domain.Batch) error {
	batch.UpdatedAt = time.Now()
	result, err := db.ExecContext(ctx,
		`UPDATE batches SET source = $1, status = $2, accepted_count = $3, rejected_count = $4, updated_at = $5
		 WHERE id = $6`,
		batch.Source, batch.Status, batch.AcceptedCount, batch.RejectedCount, batch.UpdatedAt, batch.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateBatch(ctx context.Context, batch *domain.Batch) error {
	return updateBatch(ctx, s.db, batch)
}

func (t *Tx) UpdateBatch(ctx context.Context, batch *domain.Batch) error {
	return updateBatch(ctx, t.tx, batch)
}

func deleteBatch(ctx context.Context, db dbInterface, id string) error {
	// Cascade by hand: sqlite does not enforce foreign keys unless enabled.
	if _, err := db.ExecContext(ctx, `DELETE FROM customers WHERE batch_id = $1`, id); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM rejected_rows WHERE batch_id = $1`, id); err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteBatch(ctx context.Context, id string) error {
	return deleteBatch(ctx, s.db, id)
}

func (t *Tx) DeleteBatch(ctx context.Context, id string) error {
	return deleteBatch(ctx, t.tx, id)
}

// ============================================
// Customers
// ============================================

func createCustomer(ctx context.Context, db dbInterface, customer *domain.Customer) error {
	customer.PackTags()
	_, err := db.ExecContext(ctx,
		`INSERT INTO customers (id, batch_id, row_number, name, ip_address, subnet_mask, service_code, tags, object_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		customer.ID, customer.BatchID, customer.RowNumber, customer.Name, customer.IPAddress, customer.SubnetMask,
		customer.ServiceCode, customer.TagsRaw, customer.ObjectName, customer.CreatedAt, customer.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	return createCustomer(ctx, s.db, customer)
}

func (t *Tx) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	return createCustomer(ctx, t.tx, customer)
}

const customerColumns = `id, batch_id, row_number, name, ip_address, subnet_mask, service_code, tags, object_name, created_at, updated_at`

func getCustomer(ctx context.Context, db dbInterface, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.GetContext(ctx, &customer,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	customer.UnpackTags()
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, s.db, id)
}

func (t *Tx) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, t.tx, id)
}

func getCustomerByObjectName(ctx context.Context, db dbInterface, objectName string) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.GetContext(ctx, &customer,
		`SELECT `+customerColumns+` FROM customers WHERE object_name = $1`, objectName)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	customer.UnpackTags()
	return &customer, nil
}

func (s *Store) GetCustomerByObjectName(ctx context.Context, objectName string) (*domain.Customer, error) {
	return getCustomerByObjectName(ctx, s.db, objectName)
}

func (t *Tx) GetCustomerByObjectName(ctx context.Context, objectName string) (*domain.Customer, error) {
	return getCustomerByObjectName(ctx, t.tx, objectName)
}

func listCustomers(ctx context.Context, db dbInterface) ([]*domain.Customer, error) {
	// Batches order by creation time; within a batch the input row
	// number breaks the tie, since every row shares one timestamp.
	var customers []*domain.Customer
	err := db.SelectContext(ctx, &customers,
		`SELECT `+customerColumns+` FROM customers ORDER BY created_at, row_number`)
	if err != nil {
		return nil, err
	}
	for _, c := range customers {
		c.UnpackTags()
	}
	return customers, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	return listCustomers(ctx, s.db)
}

func (t *Tx) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	return listCustomers(ctx, t.tx)
}

func listCustomersForBatch(ctx context.Context, db dbInterface, batchID string) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	err := db.SelectContext(ctx, &customers,
		`SELECT `+customerColumns+` FROM customers WHERE batch_id = $1 ORDER BY created_at, row_number`, batchID)
	if err != nil {
		return nil, err
	}
	for _, c := range customers {
		c.UnpackTags()
	}
	return customers, nil
}

func (s *Store) ListCustomersForBatch(ctx context.Context, batchID string) ([]*domain.Customer, error) {
	return listCustomersForBatch(ctx, s.db, batchID)
}

func (t *Tx) ListCustomersForBatch(ctx context.Context, batchID string) ([]*domain.Customer, error) {
	return listCustomersForBatch(ctx, t.tx, batchID)
}

func updateCustomer(ctx context.Context, db dbInterface, customer *domain.Customer) error {
	customer.PackTags()
	customer.UpdatedAt = time.Now()
	result, err := db.ExecContext(ctx,
		`UPDATE customers SET name = $1, ip_address = $2, subnet_mask = $3, service_code = $4,
		 tags = $5, object_name = $6, updated_at = $7 WHERE id = $8`,
		customer.Name, customer.IPAddress, customer.SubnetMask, customer.ServiceCode,
		customer.TagsRaw, customer.ObjectName, customer.UpdatedAt, customer.ID)
	if err != nil {
		return wrapUniqueError(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer *domain.Customer) error {
	return updateCustomer(ctx, s.db, customer)
}

func (t *Tx) UpdateCustomer(ctx context.Context, customer *domain.Customer) error {
	return updateCustomer(ctx, t.tx, customer)
}

func deleteCustomer(ctx context.Context, db dbInterface, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	return deleteCustomer(ctx, s.db, id)
}

func (t *Tx) DeleteCustomer(ctx context.Context, id string) error {
	return deleteCustomer(ctx, t.tx, id)
}

// ============================================
// Rejected rows
// ============================================

func createRejectedRow(ctx context.Context, db dbInterface, row *domain.RejectedRow) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO rejected_rows (id, batch_id, row_number, name, ip_address, subnet_mask, service_code, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		row.ID, row.BatchID, row.RowNumber, row.Name, row.IPAddress, row.SubnetMask,
		row.ServiceCode, row.Reason, row.CreatedAt)
	return err
}

func (s *Store) CreateRejectedRow(ctx context.Context, row *domain.RejectedRow) error {
	return createRejectedRow(ctx, s.db, row)
}

func (t *Tx) CreateRejectedRow(ctx context.Context, row *domain.RejectedRow) error {
	return createRejectedRow(ctx, t.tx, row)
}

func listRejectedRowsForBatch(ctx context.Context, db dbInterface, batchID string) ([]*domain.RejectedRow, error) {
	var rows []*domain.RejectedRow
	err := db.SelectContext(ctx, &rows,
		`SELECT id, batch_id, row_number, name, ip_address, subnet_mask, service_code, reason, created_at
		 FROM rejected_rows WHERE batch_id = $1 ORDER BY row_number`, batchID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) ListRejectedRowsForBatch(ctx context.Context, batchID string) ([]*domain.RejectedRow, error) {
	return listRejectedRowsForBatch(ctx, s.db, batchID)
}

func (t *Tx) ListRejectedRowsForBatch(ctx context.Context, batchID string) ([]*domain.RejectedRow, error) {
	return listRejectedRowsForBatch(ctx, t.tx, batchID)
}

// ============================================
// Push versions
// ============================================

func createPushVersion(ctx context.Context, db dbInterface, version *domain.PushVersion) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO push_versions (id, version_number, rendered_artifact, status, stage, error, commit_job, push_job, created_at, pushed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		version.ID, version.VersionNumber, version.RenderedArtifact, version.Status, version.Stage,
		version.Error, version.CommitJob, version.PushJob, version.CreatedAt, version.PushedAt)
	return err
}

func (s *Store) CreatePushVersion(ctx context.Context, version *domain.PushVersion) error {
	return createPushVersion(ctx, s.db, version)
}

func (t *Tx) CreatePushVersion(ctx context.Context, version *domain.PushVersion) error {
	return createPushVersion(ctx, t.tx, version)
}

const pushVersionColumns = `id, version_number, rendered_artifact, status, stage, error, commit_job, push_job, created_at, pushed_at`

func getPushVersion(ctx context.Context, db dbInterface, id string) (*domain.PushVersion, error) {
	var version domain.PushVersion
	err := db.GetContext(ctx, &version,
		`SELECT `+pushVersionColumns+` FROM push_versions WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &version, err
}

func (s *Store) GetPushVersion(ctx context.Context, id string) (*domain.PushVersion, error) {
	return getPushVersion(ctx, s.db, id)
}

func (t *Tx) GetPushVersion(ctx context.Context, id string) (*domain.PushVersion, error) {
	return getPushVersion(ctx, t.tx, id)
}

func getLatestPushVersion(ctx context.Context, db dbInterface) (*domain.PushVersion, error) {
	var version domain.PushVersion
	err := db.GetContext(ctx, &version,
		`SELECT `+pushVersionColumns+` FROM push_versions ORDER BY version_number DESC LIMIT 1`)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &version, err
}

func (s *Store) GetLatestPushVersion(ctx context.Context) (*domain.PushVersion, error) {
	return getLatestPushVersion(ctx, s.db)
}

func (t *Tx) GetLatestPushVersion(ctx context.Context) (*domain.PushVersion, error) {
	return getLatestPushVersion(ctx, t.tx)
}

func listPushVersions(ctx context.Context, db dbInterface, limit, offset int) ([]*domain.PushVersion, error) {
	var versions []*domain.PushVersion
	err := db.SelectContext(ctx, &versions,
		`SELECT `+pushVersionColumns+` FROM push_versions ORDER BY version_number DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (s *Store) ListPushVersions(ctx context.Context, limit, offset int) ([]*domain.PushVersion, error) {
	return listPushVersions(ctx, s.db, limit, offset)
}

func (t *Tx) ListPushVersions(ctx context.Context, limit, offset int) ([]*domain.PushVersion, error) {
	return listPushVersions(ctx, t.tx, limit, offset)
}

func updatePushVersion(ctx context.Context, db dbInterface, version *domain.PushVersion) error {
	result, err := db.ExecContext(ctx,
		`UPDATE push_versions SET status = $1, stage = $2, error = $3, commit_job = $4, push_job = $5, pushed_at = $6
		 WHERE id = $7`,
		version.Status, version.Stage, version.Error, version.CommitJob, version.PushJob,
		version.PushedAt, version.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdatePushVersion(ctx context.Context, version *domain.PushVersion) error {
	return updatePushVersion(ctx, s.db, version)
}

func (t *Tx) UpdatePushVersion(ctx context.Context, version *domain.PushVersion) error {
	return updatePushVersion(ctx, t.tx, version)
}
