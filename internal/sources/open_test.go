package sources

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestOpen_memory_and_file(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := Open(ctx, Backend{})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	closeFn()
	if _, ok := s.(*MemorySettings); !ok {
		t.Errorf("default backend: got %T", s)
	}

	s, closeFn, err = Open(ctx, Backend{Kind: "file", Path: filepath.Join(t.TempDir(), "s.json")})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	defer closeFn()
	if _, ok := s.(*FileSettings); !ok {
		t.Errorf("file backend: got %T", s)
	}
}

func TestOpen_redis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	s, closeFn, err := Open(ctx, Backend{Kind: "redis", RedisURL: "redis://" + mr.Addr() + "/0", RedisPrefix: "pc:"})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer closeFn()

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := mr.Get("pc:k"); got != "v" {
		t.Errorf("stored %q", got)
	}
}

func TestOpen_errors(t *testing.T) {
	ctx := context.Background()

	if _, _, err := Open(ctx, Backend{Kind: "etcd"}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
	if _, _, err := Open(ctx, Backend{Kind: "redis", RedisURL: "not a url"}); err == nil {
		t.Error("expected redis url error")
	}
	if _, _, err := Open(ctx, Backend{Kind: "postgres"}); err == nil {
		t.Error("expected missing database url error")
	}
}
