package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Material Supplier!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260304050607_add_material_supplier.sql" {
		t.Fatalf("unexpected filename %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "-- +goose Up") || !strings.Contains(string(data), "-- +goose Down") {
		t.Fatalf("template missing goose markers")
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := CreateSQLMigration(t.TempDir(), "!!!", time.Now()); err == nil {
		t.Fatalf("expected error for name that sanitizes to empty")
	}
}

func TestCreateSQLMigrationRejectsOutOfOrderVersion(t *testing.T) {
	dir := t.TempDir()
	later := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, err := CreateSQLMigration(dir, "first", later); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := CreateSQLMigration(dir, "second", later.Add(-time.Hour)); err == nil {
		t.Fatalf("expected error for version older than latest")
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatalf("expected invalid filename error")
	}
}

func TestValidateRejectsEmptyUpSection(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\n-- +goose StatementEnd\n-- +goose Down\nSELECT 1;\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_empty.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "up section is empty") {
		t.Fatalf("expected empty up section error, got %v", err)
	}
}

func TestEmbeddedMatchesDiskMigrations(t *testing.T) {
	embeddedSet, err := Validate(Embedded())
	if err != nil {
		t.Fatalf("validate embedded: %v", err)
	}
	diskSet, err := Validate(FromDir("migrations"))
	if err != nil {
		t.Fatalf("validate disk: %v", err)
	}
	if len(embeddedSet) == 0 || len(embeddedSet) != len(diskSet) {
		t.Fatalf("expected embedded and disk sets to match, got %d and %d", len(embeddedSet), len(diskSet))
	}
	for i := range embeddedSet {
		if embeddedSet[i] != diskSet[i] {
			t.Fatalf("migration %d differs: %+v vs %+v", i, embeddedSet[i], diskSet[i])
		}
	}
}
