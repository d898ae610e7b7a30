package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// exerciseStore runs the shared [Store] contract against s.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get(missing): %v", err)
	}
	if got != nil {
		t.Fatalf("Get(missing) = %q; want nil", got)
	}

	if err := s.Set(ctx, "notes", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err = s.Get(ctx, "notes")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("Get = %q", got)
	}

	if err := s.Set(ctx, "notes", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, _ = s.Get(ctx, "notes")
	if string(got) != `{"a":2}` {
		t.Errorf("Get after overwrite = %q", got)
	}

	if err := s.Remove(ctx, "notes"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got, _ = s.Get(ctx, "notes")
	if got != nil {
		t.Errorf("Get after Remove = %q; want nil", got)
	}
	if err := s.Remove(ctx, "notes"); err != nil {
		t.Errorf("Remove(missing): %v", err)
	}
}

func TestMemoryStore_Contract(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()
	v := []byte("abc")
	_ = s.Set(ctx, "k", v)
	v[0] = 'X'
	got, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value aliased caller slice: %q", got)
	}
}

func TestFileStore_Contract(t *testing.T) {
	t.Parallel()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	exerciseStore(t, s)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	a, _ := NewFileStore(dir)
	if err := a.Set(ctx, "voicememo-notes", []byte("payload")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b, _ := NewFileStore(dir)
	got, err := b.Get(ctx, "voicememo-notes")
	if err != nil || string(got) != "payload" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected exactly one file (no temp leftovers), got %d", len(entries))
	}
}

func TestFileStore_ConcurrentWriters(t *testing.T) {
	t.Parallel()
	s, _ := NewFileStore(t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, "k", []byte{byte('a' + i)})
		}()
	}
	wg.Wait()
	got, err := s.Get(ctx, "k")
	if err != nil || len(got) != 1 {
		t.Fatalf("Get = %q, %v", got, err)
	}
}

func TestFileStore_RejectsBadKeys(t *testing.T) {
	t.Parallel()
	s, _ := NewFileStore(t.TempDir())
	ctx := context.Background()
	for _, key := range []string{"", "..", "../etc/passwd", "a/b", "with space"} {
		if err := s.Set(ctx, key, []byte("x")); err == nil {
			t.Errorf("Set(%q) should fail", key)
		}
		if _, err := s.Get(ctx, key); err == nil {
			t.Errorf("Get(%q) should fail", key)
		}
	}
}

func TestNewFileStore_EmptyDir(t *testing.T) {
	t.Parallel()
	if _, err := NewFileStore(""); err == nil {
		t.Fatal("expected error for empty dir")
	}
}
