package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemorySettings_GetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySettings()

	if _, ok, err := s.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected not found for empty store, ok=%v err=%v", ok, err)
	}

	buf := []byte("v1")
	if err := s.Set(ctx, "k", buf); err != nil {
		t.Fatalf("Set: %v", err)
	}
	buf[0] = 'x'

	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v1" {
		t.Errorf("Get: got %q ok=%v err=%v, want v1", got, ok, err)
	}
}

func TestFileSettings_persists_across_instances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	s := NewFileSettings(path)
	if _, ok, err := s.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("missing file: ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "k", []byte("blob")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "other", []byte("x")); err != nil {
		t.Fatalf("Set other: %v", err)
	}

	got, ok, err := NewFileSettings(path).Get(ctx, "k")
	if err != nil || !ok || string(got) != "blob" {
		t.Errorf("reopened Get: got %q ok=%v err=%v", got, ok, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestFileSettings_corrupt_document(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFileSettings(path)

	if _, _, err := s.Get(ctx, "k"); err == nil {
		t.Error("expected decode error")
	}

	// A history over a corrupt document falls back to seeds and can still write.
	h := NewHistory(s, HistoryOptions{Seeds: []Seed{{"A", "urlA"}}})
	if got := h.Load(ctx); len(got) != 1 || got[0].URL != "urlA" {
		t.Fatalf("Load: got %+v", got)
	}
	if _, err := h.Add(ctx, "B", "urlB"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := NewHistory(s, HistoryOptions{}).Load(ctx); len(got) != 2 {
		t.Errorf("reloaded %d entries, want 2", len(got))
	}
}

func TestRedisSettings(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	s := NewRedisSettings(rdb, "console:")

	if _, ok, err := s.Get(ctx, DefaultKey); ok || err != nil {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	h := NewHistory(s, HistoryOptions{Seeds: []Seed{{"A", "urlA"}}})
	h.Load(ctx)
	if _, err := h.Add(ctx, "B", "urlB"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	raw, err := mr.Get("console:" + DefaultKey)
	if err != nil {
		t.Fatalf("key not written with prefix: %v", err)
	}
	entries, err := Decode([]byte(raw))
	if err != nil || len(entries) != 2 {
		t.Fatalf("stored blob: %d entries, err=%v", len(entries), err)
	}

	reloaded := NewHistory(s, HistoryOptions{}).Load(ctx)
	if len(reloaded) != 2 || reloaded[1].URL != "urlB" {
		t.Errorf("reloaded: %+v", reloaded)
	}
}

func TestRedisSettings_unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	defer rdb.Close()

	s := NewRedisSettings(rdb, "")
	if _, _, err := s.Get(context.Background(), "k"); err == nil {
		t.Error("expected error from closed server")
	}
	if err := s.Set(context.Background(), "k", []byte("v")); err == nil {
		t.Error("expected error from closed server")
	}
}
