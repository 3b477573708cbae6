package db

import (
	"path/filepath"
	"testing"

	"github.com/termfx/pforge/models"
)

func TestOpen_FileDSNMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	database, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()

	for _, model := range []any{&models.StateEntry{}, &models.Session{}} {
		if !database.Migrator().HasTable(model) {
			t.Errorf("expected table for %T after open", model)
		}
	}
}

func TestIsRemote(t *testing.T) {
	tests := []struct {
		dsn  string
		want bool
	}{
		{"libsql://db.example.turso.io", true},
		{"https://db.example.turso.io", true},
		{"http://localhost:8080", true},
		{"/var/lib/pforge/state.db", false},
		{"state.db", false},
	}
	for _, tt := range tests {
		if got := isRemote(tt.dsn); got != tt.want {
			t.Errorf("isRemote(%q) = %v, want %v", tt.dsn, got, tt.want)
		}
	}
}
