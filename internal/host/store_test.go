package host

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-pool/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-pool/internal/infrastructure/database"
)

// openTestRepo creates a temporary SQLite database with the capabilities
// schema and returns a repository over it.
func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5000,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	schema := `
		CREATE TABLE capabilities (
			name       TEXT PRIMARY KEY,
			pool_id    TEXT NOT NULL,
			kind       TEXT NOT NULL,
			value      TEXT,
			writable   INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	settingsSchema := `
		CREATE TABLE settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`
	if _, err := db.ExecContext(context.Background(), settingsSchema); err != nil {
		t.Fatalf("creating settings schema: %v", err)
	}

	return NewSQLiteRepository(db)
}

// =============================================================================
// Create and Get
// =============================================================================

func TestRepositoryCreateAndGet(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	err := repo.Create(ctx, &Capability{Name: "ph", PoolID: "pool-1", Kind: "sensor"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := repo.Get(ctx, "ph")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Name != "ph" || got.PoolID != "pool-1" || got.Kind != "sensor" {
		t.Errorf("Get() = %+v", got)
	}
	if got.Defined {
		t.Error("freshly created capability reports a committed value")
	}
	if got.Writable {
		t.Error("freshly created capability reports writable")
	}
}

func TestRepositoryCreateDuplicate(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Capability{Name: "ph", PoolID: "pool-1", Kind: "sensor"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	err := repo.Create(ctx, &Capability{Name: "ph", PoolID: "pool-1", Kind: "sensor"})
	if !errors.Is(err, ErrCapabilityExists) {
		t.Errorf("duplicate Create() error = %v, want ErrCapabilityExists", err)
	}
}

func TestRepositoryGetNotFound(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, ErrCapabilityNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrCapabilityNotFound", err)
	}
}

// =============================================================================
// Values
// =============================================================================

func TestRepositoryUpdateValue(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Capability{Name: "ph", PoolID: "pool-1", Kind: "sensor"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"float", 7.42, 7.42},
		{"bool", true, true},
		{"string", "auto", "auto"},
		// JSON round trip widens integers to float64.
		{"int", int64(2), float64(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.UpdateValue(ctx, "ph", tt.value); err != nil {
				t.Fatalf("UpdateValue() error: %v", err)
			}
			got, err := repo.Get(ctx, "ph")
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if !got.Defined {
				t.Fatal("capability not marked defined after UpdateValue")
			}
			if got.Value != tt.want {
				t.Errorf("Value = %v (%T), want %v", got.Value, got.Value, tt.want)
			}
		})
	}
}

func TestRepositoryUpdateValueNotFound(t *testing.T) {
	repo := openTestRepo(t)

	err := repo.UpdateValue(context.Background(), "missing", 1.0)
	if !errors.Is(err, ErrCapabilityNotFound) {
		t.Errorf("UpdateValue(missing) error = %v, want ErrCapabilityNotFound", err)
	}
}

// =============================================================================
// Writable Flag and Listing
// =============================================================================

func TestRepositorySetWritable(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Capability{Name: "ph_setpoint", PoolID: "pool-1", Kind: "setpoint"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := repo.SetWritable(ctx, "ph_setpoint", true); err != nil {
		t.Fatalf("SetWritable() error: %v", err)
	}

	got, err := repo.Get(ctx, "ph_setpoint")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !got.Writable {
		t.Error("capability not writable after SetWritable")
	}
}

func TestRepositoryList(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for _, name := range []string{"water_temp", "ph", "filtration_on"} {
		if err := repo.Create(ctx, &Capability{Name: name, PoolID: "pool-1", Kind: "sensor"}); err != nil {
			t.Fatalf("Create(%s) error: %v", name, err)
		}
	}
	if err := repo.Create(ctx, &Capability{Name: "other", PoolID: "pool-2", Kind: "sensor"}); err != nil {
		t.Fatalf("Create(other) error: %v", err)
	}
	if err := repo.UpdateValue(ctx, "ph", 7.4); err != nil {
		t.Fatalf("UpdateValue() error: %v", err)
	}

	capabilities, err := repo.List(ctx, "pool-1")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(capabilities) != 3 {
		t.Fatalf("List() returned %d capabilities, want 3", len(capabilities))
	}

	// Ordered by name: filtration_on, ph, water_temp.
	if capabilities[0].Name != "filtration_on" || capabilities[2].Name != "water_temp" {
		t.Errorf("unexpected order: %s, %s, %s",
			capabilities[0].Name, capabilities[1].Name, capabilities[2].Name)
	}
	for _, c := range capabilities {
		if c.Name == "ph" {
			if !c.Defined || c.Value != 7.4 {
				t.Errorf("ph = %+v, want defined 7.4", c)
			}
		}
	}
}

// =============================================================================
// Settings
// =============================================================================

func TestRepositorySettings(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetSetting(ctx, "device_status")
	if !errors.Is(err, ErrSettingNotFound) {
		t.Errorf("GetSetting(missing) error = %v, want ErrSettingNotFound", err)
	}

	if err := repo.SetSetting(ctx, "device_status", `{"online":true}`); err != nil {
		t.Fatalf("SetSetting() error: %v", err)
	}
	got, err := repo.GetSetting(ctx, "device_status")
	if err != nil {
		t.Fatalf("GetSetting() error: %v", err)
	}
	if got != `{"online":true}` {
		t.Errorf("GetSetting() = %q", got)
	}

	// Upsert replaces the value.
	if err := repo.SetSetting(ctx, "device_status", `{"online":false}`); err != nil {
		t.Fatalf("SetSetting() replace error: %v", err)
	}
	got, err = repo.GetSetting(ctx, "device_status")
	if err != nil {
		t.Fatalf("GetSetting() error: %v", err)
	}
	if got != `{"online":false}` {
		t.Errorf("GetSetting() after replace = %q", got)
	}
}
