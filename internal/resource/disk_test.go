package resource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

func newDiskStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	return store
}

func TestDiskStore_PutMatchRoundTrip(t *testing.T) {
	store := newDiskStore(t)

	resp := &Response{
		StatusCode: 200,
		Header:     map[string][]string{"Content-Type": {"text/css"}},
		Body:       []byte("body { margin: 0 }"),
	}
	if err := store.Put("v1", "GET https://app.example.com/main.css", resp); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Match("v1", "GET https://app.example.com/main.css")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if got.StatusCode != 200 {
		t.Errorf("status: got %d", got.StatusCode)
	}
	if string(got.Body) != string(resp.Body) {
		t.Errorf("body: got %q, want %q", got.Body, resp.Body)
	}
	if got.Header["Content-Type"][0] != "text/css" {
		t.Errorf("header: got %v", got.Header)
	}
}

func TestDiskStore_MatchMiss(t *testing.T) {
	store := newDiskStore(t)

	if _, err := store.Match("v1", "GET https://nowhere"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestDiskStore_OverwriteReplacesEntry(t *testing.T) {
	store := newDiskStore(t)
	key := "GET https://app.example.com/app.js"

	if err := store.Put("v1", key, &Response{StatusCode: 200, Body: []byte("old")}); err != nil {
		t.Fatal(err)
	}
	if err := store.Put("v1", key, &Response{StatusCode: 200, Body: []byte("new")}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Match("v1", key)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if string(got.Body) != "new" {
		t.Errorf("body after overwrite: got %q", got.Body)
	}
}

func TestDiskStore_GenerationLifecycle(t *testing.T) {
	store := newDiskStore(t)

	for _, generation := range []string{"assets-v1", "assets-v2"} {
		if err := store.Open(generation); err != nil {
			t.Fatalf("Open(%q) failed: %v", generation, err)
		}
		if err := store.Put(generation, "GET https://x", &Response{StatusCode: 200}); err != nil {
			t.Fatal(err)
		}
	}

	names, err := store.ListGenerations()
	if err != nil {
		t.Fatalf("ListGenerations failed: %v", err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "assets-v1" || names[1] != "assets-v2" {
		t.Fatalf("generations: got %v", names)
	}

	if err := store.Delete("assets-v1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	names, _ = store.ListGenerations()
	if len(names) != 1 || names[0] != "assets-v2" {
		t.Errorf("generations after delete: got %v", names)
	}

	// Entries of the deleted generation are gone.
	if _, err := store.Match("assets-v1", "GET https://x"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch after generation delete, got %v", err)
	}
}

func TestDiskStore_CorruptEntryDiscarded(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	key := "GET https://app.example.com/data"
	if err := store.Put("v1", key, &Response{StatusCode: 200, Body: []byte("ok")}); err != nil {
		t.Fatal(err)
	}

	// Corrupt the file on disk.
	if err := os.WriteFile(store.entryPath("v1", key), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Match("v1", key); !errors.Is(err, ErrCorruptEntry) {
		t.Fatalf("expected ErrCorruptEntry, got %v", err)
	}
	// The corrupted entry was dropped; the next lookup is a clean miss.
	if _, err := store.Match("v1", key); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch after discard, got %v", err)
	}
}

func TestDiskStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := NewDiskStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Put("v1", "GET https://x", &Response{StatusCode: 200, Body: []byte("kept")}); err != nil {
		t.Fatal(err)
	}

	second, err := NewDiskStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := second.Match("v1", "GET https://x")
	if err != nil {
		t.Fatalf("Match after reopen failed: %v", err)
	}
	if string(got.Body) != "kept" {
		t.Errorf("body after reopen: got %q", got.Body)
	}
}

func TestDiskStore_Stats(t *testing.T) {
	store := newDiskStore(t)

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("GET https://app.example.com/%d", i)
		if err := store.Put("v1", key, &Response{StatusCode: 200, Body: []byte("data")}); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("stats length: got %d", len(stats))
	}
	if stats[0].Name != "v1" || stats[0].Entries != 3 {
		t.Errorf("stats: got %+v", stats[0])
	}
	if stats[0].Bytes == 0 {
		t.Error("stats bytes should be non-zero")
	}
}

func TestDiskStore_ConcurrentPutMatch(t *testing.T) {
	store := newDiskStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("GET https://app.example.com/%d", n%3)
			for j := 0; j < 10; j++ {
				body := []byte(fmt.Sprintf("%d-%d", n, j))
				if err := store.Put("v1", key, &Response{StatusCode: 200, Body: body}); err != nil {
					t.Errorf("Put failed: %v", err)
					return
				}
				if _, err := store.Match("v1", key); err != nil && !errors.Is(err, ErrNoMatch) {
					t.Errorf("Match failed: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestDiskStore_UnsafeGenerationNames(t *testing.T) {
	store := newDiskStore(t)

	name := "../escape/attempt"
	if err := store.Put(name, "GET https://x", &Response{StatusCode: 200}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Nothing may be written outside the base path.
	parent := filepath.Dir(store.basePath)
	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if entry.Name() == "escape" {
			t.Error("generation escaped the base directory")
		}
	}

	names, err := store.ListGenerations()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != name {
		t.Errorf("generations: got %v, want [%q]", names, name)
	}
}
