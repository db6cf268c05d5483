package migrate

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/tursodatabase/go-libsql"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("libsql", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoadMigrations(t *testing.T) {
	all, err := LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations failed: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for i, m := range all {
		if m.UpSQL == "" {
			t.Errorf("migration %d has empty up SQL", m.Version)
		}
		if i > 0 && all[i-1].Version >= m.Version {
			t.Errorf("migrations out of order: %d before %d", all[i-1].Version, m.Version)
		}
	}
}

func TestUpIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Up(ctx, db); err != nil {
		t.Fatalf("first Up failed: %v", err)
	}
	if err := Up(ctx, db); err != nil {
		t.Fatalf("second Up failed: %v", err)
	}

	version, dirty, err := GetCurrentVersion(ctx, db)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if dirty {
		t.Error("database left dirty")
	}
	if version == 0 {
		t.Error("expected a nonzero version after Up")
	}

	// The schema is usable after migration.
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alert_rules`).Scan(&count); err != nil {
		t.Fatalf("querying alert_rules: %v", err)
	}
	if count == 0 {
		t.Error("expected seeded alert rules")
	}
}
