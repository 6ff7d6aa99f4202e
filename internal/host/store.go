package host

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Capability is a persisted capability record. Value is the last committed
// value, JSON-encoded at rest; a NULL value means the capability has been
// provisioned but never observed.
type Capability struct {
	Name      string
	PoolID    string
	Kind      string
	Value     any
	Defined   bool
	Writable  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines the interface for capability persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Get retrieves a capability by name.
	// Returns ErrCapabilityNotFound if it does not exist.
	Get(ctx context.Context, name string) (*Capability, error)

	// List retrieves all capabilities for a pool.
	List(ctx context.Context, poolID string) ([]Capability, error)

	// Create inserts a new capability with no committed value.
	// Returns ErrCapabilityExists if the name is already taken.
	Create(ctx context.Context, capability *Capability) error

	// UpdateValue commits a new value for a capability.
	// Returns ErrCapabilityNotFound if the capability does not exist.
	UpdateValue(ctx context.Context, name string, value any) error

	// SetWritable marks a capability as accepting set-requests.
	SetWritable(ctx context.Context, name string, writable bool) error

	// GetSetting retrieves a host setting by key.
	// Returns ErrSettingNotFound if the key does not exist.
	GetSetting(ctx context.Context, key string) (string, error)

	// SetSetting stores a host setting, replacing any existing value.
	SetSetting(ctx context.Context, key, value string) error
}

// querier is the subset of database/sql used by the repository; satisfied
// by *database.DB.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db querier
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db querier) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get retrieves a capability by name.
func (r *SQLiteRepository) Get(ctx context.Context, name string) (*Capability, error) {
	query := `
		SELECT name, pool_id, kind, value, writable, created_at, updated_at
		FROM capabilities
		WHERE name = ?`

	row := r.db.QueryRowContext(ctx, query, name)
	capability, err := scanCapability(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCapabilityNotFound
		}
		return nil, fmt.Errorf("querying capability by name: %w", err)
	}
	return capability, nil
}

// List retrieves all capabilities for a pool.
func (r *SQLiteRepository) List(ctx context.Context, poolID string) ([]Capability, error) {
	query := `
		SELECT name, pool_id, kind, value, writable, created_at, updated_at
		FROM capabilities
		WHERE pool_id = ?
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("querying capabilities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var capabilities []Capability
	for rows.Next() {
		capability, err := scanCapability(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning capability: %w", err)
		}
		capabilities = append(capabilities, *capability)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capabilities: %w", err)
	}
	return capabilities, nil
}

// Create inserts a new capability with no committed value.
func (r *SQLiteRepository) Create(ctx context.Context, capability *Capability) error {
	now := time.Now().UTC()
	if capability.CreatedAt.IsZero() {
		capability.CreatedAt = now
	}
	capability.UpdatedAt = now

	query := `
		INSERT INTO capabilities (name, pool_id, kind, value, writable, created_at, updated_at)
		VALUES (?, ?, ?, NULL, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		capability.Name, capability.PoolID, capability.Kind,
		boolToInt(capability.Writable), capability.CreatedAt, capability.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCapabilityExists
		}
		return fmt.Errorf("inserting capability: %w", err)
	}
	return nil
}

// UpdateValue commits a new value for a capability.
func (r *SQLiteRepository) UpdateValue(ctx context.Context, name string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshalling value: %w", err)
	}

	query := `
		UPDATE capabilities
		SET value = ?, updated_at = ?
		WHERE name = ?`

	result, err := r.db.ExecContext(ctx, query, string(encoded), time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("updating capability value: %w", err)
	}
	return requireRow(result)
}

// SetWritable marks a capability as accepting set-requests.
func (r *SQLiteRepository) SetWritable(ctx context.Context, name string, writable bool) error {
	query := `
		UPDATE capabilities
		SET writable = ?, updated_at = ?
		WHERE name = ?`

	result, err := r.db.ExecContext(ctx, query, boolToInt(writable), time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("updating capability writable flag: %w", err)
	}
	return requireRow(result)
}

// GetSetting retrieves a host setting by key.
func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM settings WHERE key = ?`

	var value string
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", fmt.Errorf("querying setting: %w", err)
	}
	return value, nil
}

// SetSetting stores a host setting, replacing any existing value.
func (r *SQLiteRepository) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storing setting: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCapability(s scanner) (*Capability, error) {
	var (
		capability Capability
		rawValue   sql.NullString
		writable   int
	)

	err := s.Scan(&capability.Name, &capability.PoolID, &capability.Kind,
		&rawValue, &writable, &capability.CreatedAt, &capability.UpdatedAt)
	if err != nil {
		return nil, err
	}

	capability.Writable = writable != 0
	if rawValue.Valid {
		var value any
		if err := json.Unmarshal([]byte(rawValue.String), &value); err != nil {
			return nil, fmt.Errorf("unmarshalling value for %s: %w", capability.Name, err)
		}
		capability.Value = value
		capability.Defined = true
	}
	return &capability, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCapabilityNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation detects SQLite primary key conflicts without binding
// to driver-specific error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE")
}
