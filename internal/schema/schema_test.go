package schema_test

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/JaimeStill/scribe/internal/schema"
)

func TestMigrationsPaired(t *testing.T) {
	entries, err := fs.ReadDir(schema.Migrations(), ".")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}

	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for v := range ups {
		if !downs[v] {
			t.Errorf("migration %s has no down file", v)
		}
	}
}

func TestInitialSchemaConstraints(t *testing.T) {
	data, err := fs.ReadFile(schema.Migrations(), "000001_initial_schema.up.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sql := string(data)

	for _, want := range []string{
		"UNIQUE (document_id, state)",
		"REFERENCES documents (id) ON DELETE CASCADE",
		"document_id      UUID PRIMARY KEY",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
