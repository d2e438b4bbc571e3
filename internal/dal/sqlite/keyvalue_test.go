package sqlite

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestKeyValue(t *testing.T) *KeyValue {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	keyValue, err := NewKeyValue(context.Background(), db)
	if err != nil {
		t.Fatalf("NewKeyValue: %v", err)
	}
	return keyValue
}

func TestKeyValue(t *testing.T) {
	kv := newTestKeyValue(t)
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("Get on empty store: ok=%v err=%v", ok, err)
	}

	if err := kv.Set(ctx, "k", `[{"id":"c1","label":"饺子"}]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, err := kv.Get(ctx, "k"); err != nil || !ok || v != `[{"id":"c1","label":"饺子"}]` {
		t.Fatalf("Get = (%q, %v, %v)", v, ok, err)
	}

	// Set on an existing key overwrites.
	if err := kv.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if v, _, _ := kv.Get(ctx, "k"); v != "v2" {
		t.Fatalf("Get after overwrite = %q, want v2", v)
	}

	if err := kv.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Fatal("key still present after Remove")
	}

	if err := kv.Remove(ctx, "missing"); err != nil {
		t.Fatalf("Remove missing: %v", err)
	}
}

func TestKeyValueIsolatesKeys(t *testing.T) {
	kv := newTestKeyValue(t)
	ctx := context.Background()

	if err := kv.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set(ctx, "b", "2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if v, ok, err := kv.Get(ctx, "b"); err != nil || !ok || v != "2" {
		t.Fatalf("Get b = (%q, %v, %v), want (2, true, nil)", v, ok, err)
	}
}
