package database

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/m3rciful/citybot/migrations"
)

func TestListMigrationFiles(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverSQLite} {
		files := listMigrationFiles(migrations.FS, driver)
		if len(files) == 0 {
			t.Fatalf("%s: no embedded migrations", driver)
		}
		if files[0] != "000001_state_entries.up.sql" {
			t.Fatalf("%s: first migration = %s", driver, files[0])
		}
	}
}

func TestSelectApplied(t *testing.T) {
	files := []string{"000001_a.up.sql", "000002_b.up.sql", "000003_c.up.sql"}
	tests := []struct {
		from, to uint64
		want     []string
	}{
		{0, 3, files},
		{1, 3, files[1:]},
		{3, 3, nil},
		{2, 1, nil},
	}
	for _, tc := range tests {
		if got := selectApplied(files, tc.from, tc.to); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("selectApplied(%d, %d) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSQLiteConnectAndMigrate(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Path: filepath.Join(t.TempDir(), "state.db")}

	if err := RunMigrations(ctx, DriverSQLite, cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Second run is a no-op.
	if err := RunMigrations(ctx, DriverSQLite, cfg); err != nil {
		t.Fatalf("migrate again: %v", err)
	}

	db, err := Connect(ctx, DriverSQLite, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM state_entries WHERE scope = ?`), "user"); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 0 {
		t.Fatalf("rows = %d, want 0", n)
	}
}

func TestConnectUnknownDriver(t *testing.T) {
	if _, err := Connect(context.Background(), "mysql", Config{}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
