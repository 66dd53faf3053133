package datastore

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestSQLiteBackend(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "node.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer b.Close()

	if _, err := b.Get(ctx, PathLux); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := b.Put(ctx, PathLux, "100"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Put(ctx, PathLux, "250"); err != nil {
		t.Fatalf("Put update: %v", err)
	}
	v, err := b.Get(ctx, PathLux)
	if err != nil || v != "250" {
		t.Errorf("Get: %q, %v", v, err)
	}

	c := NewClient(b, nil)
	if err := c.WriteBool(ctx, PathMotion, true); err != nil {
		t.Fatal(err)
	}
	if m, err := c.ReadBool(ctx, PathMotion); err != nil || !m {
		t.Errorf("ReadBool via client: %v, %v", m, err)
	}
}
