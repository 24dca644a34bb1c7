package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func exerciseStore(t *testing.T, s KeyValueStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := PutJSON(ctx, s, "session:local", record{Name: "a", Count: 1}); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}
	if err := PutJSON(ctx, s, "session:local", record{Name: "b", Count: 2}); err != nil {
		t.Fatalf("PutJSON overwrite: %v", err)
	}

	var got record
	if err := GetJSON(ctx, s, "session:local", &got); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got.Name != "b" || got.Count != 2 {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := s.Delete(ctx, "session:local"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "session:local"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "station.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.Put(ctx, "duplicates:local", []byte(`["tok"]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	v, err := s.Get(ctx, "duplicates:local")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != `["tok"]` {
		t.Fatalf("unexpected value %q", v)
	}
}

func TestGetJSON_DecodeError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Put(ctx, "bad", []byte("{not json"))
	var r record
	if err := GetJSON(ctx, s, "bad", &r); err == nil || errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
