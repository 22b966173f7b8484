package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/furniture-production-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks ...string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestCatalogMigrationGuardsStock(t *testing.T) {
	assertContains(t, readMigration(t, "create_catalog"),
		"CREATE TABLE IF NOT EXISTS materials",
		"CHECK (on_hand >= 0)",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE",
		"CHECK (qty_per_unit > 0)",
		"DROP TABLE IF EXISTS materials",
	)
}

func TestProductionMigrationKeepsOneJobPerLine(t *testing.T) {
	assertContains(t, readMigration(t, "create_production"),
		"order_line_item_id uuid NOT NULL UNIQUE",
		"UNIQUE (production_job_id, order_index)",
		"CHECK (overall_progress BETWEEN 0 AND 100)",
		"UNIQUE (order_id, product_id)",
		"DROP TABLE IF EXISTS production_jobs",
	)
}

func TestEnumMigrationListsStagesInOrder(t *testing.T) {
	content := readMigration(t, "create_enums")
	stages := []string{
		"'material_preparation'",
		"'cutting_shaping'",
		"'assembly'",
		"'sanding_surface_preparation'",
		"'finishing'",
		"'quality_check_packaging'",
	}
	last := -1
	for _, s := range stages {
		idx := strings.Index(content, s)
		if idx <= last {
			t.Fatalf("stage %s out of order", s)
		}
		last = idx
	}
}
