package swrcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const processesKey = "http___localhost_8082_processes"

func TestGetOrFetch_FreshCache(t *testing.T) {
	cache := New(t.TempDir(), WithTTLs(5*time.Minute, time.Hour))

	if err := writeEntry(cache, processesKey, Entry[string]{Data: "cached", FetchedAt: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("writeEntry error: %v", err)
	}

	called := 0
	fetch := func(ctx context.Context) (string, error) {
		called++
		return "fresh", nil
	}

	got, err := GetOrFetch(cache, context.Background(), processesKey, fetch)
	if err != nil {
		t.Fatalf("GetOrFetch error: %v", err)
	}
	if got.Data != "cached" {
		t.Fatalf("got %q, want %q", got.Data, "cached")
	}
	if called != 0 {
		t.Fatalf("fetch called %d times, want 0", called)
	}
}

func TestGetOrFetch_StaleCacheRevalidates(t *testing.T) {
	cache := New(t.TempDir(), WithTTLs(5*time.Minute, time.Hour))

	if err := writeEntry(cache, processesKey, Entry[string]{Data: "cached", FetchedAt: time.Now().Add(-10 * time.Minute)}); err != nil {
		t.Fatalf("writeEntry error: %v", err)
	}

	called := make(chan struct{}, 1)
	fetch := func(ctx context.Context) (string, error) {
		called <- struct{}{}
		return "fresh", nil
	}

	got, err := GetOrFetch(cache, context.Background(), processesKey, fetch)
	if err != nil {
		t.Fatalf("GetOrFetch error: %v", err)
	}
	if got.Data != "cached" {
		t.Fatalf("got %q, want %q", got.Data, "cached")
	}

	select {
	case <-called:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected background revalidation")
	}

	deadline := time.Now().Add(750 * time.Millisecond)
	for time.Now().Before(deadline) {
		entry, ok, _ := readEntry[string](cache, processesKey)
		if ok && entry.Data == "fresh" {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	entry, ok, _ := readEntry[string](cache, processesKey)
	if !ok || entry.Data != "fresh" {
		t.Fatalf("expected cache to be refreshed, got ok=%v data=%q", ok, entry.Data)
	}
}

func TestGetOrFetch_ExpiredCacheFetchesSync(t *testing.T) {
	cache := New(t.TempDir(), WithTTLs(5*time.Minute, time.Hour))

	if err := writeEntry(cache, processesKey, Entry[string]{Data: "cached", FetchedAt: time.Now().Add(-2 * time.Hour)}); err != nil {
		t.Fatalf("writeEntry error: %v", err)
	}

	called := 0
	fetch := func(ctx context.Context) (string, error) {
		called++
		return "fresh", nil
	}

	got, err := GetOrFetch(cache, context.Background(), processesKey, fetch)
	if err != nil {
		t.Fatalf("GetOrFetch error: %v", err)
	}
	if got.Data != "fresh" {
		t.Fatalf("got %q, want %q", got.Data, "fresh")
	}
	if called != 1 {
		t.Fatalf("fetch called %d times, want 1", called)
	}
}

func TestGetOrFetch_ExpiredCacheFallsBackOnError(t *testing.T) {
	cache := New(t.TempDir(), WithTTLs(5*time.Minute, time.Hour))

	if err := writeEntry(cache, processesKey, Entry[string]{Data: "cached", FetchedAt: time.Now().Add(-2 * time.Hour)}); err != nil {
		t.Fatalf("writeEntry error: %v", err)
	}
	offline := errors.New("connection refused")

	got, err := GetOrFetch(cache, context.Background(), processesKey, func(ctx context.Context) (string, error) {
		return "", offline
	})
	if !errors.Is(err, ErrStale) || !errors.Is(err, offline) {
		t.Fatalf("expected ErrStale wrapping the fetch error, got %v", err)
	}
	if got.Data != "cached" {
		t.Errorf("got %q, want the expired entry", got.Data)
	}
}

func TestGetOrFetch_MissFetchesSync(t *testing.T) {
	cache := New(t.TempDir(), WithTTLs(5*time.Minute, time.Hour))

	called := 0
	fetch := func(ctx context.Context) (string, error) {
		called++
		return "fresh", nil
	}

	got, err := GetOrFetch(cache, context.Background(), "missing", fetch)
	if err != nil {
		t.Fatalf("GetOrFetch error: %v", err)
	}
	if got.Data != "fresh" || got.FetchedAt.IsZero() {
		t.Fatalf("got %+v, want fresh data with a fetch time", got)
	}
	if called != 1 {
		t.Fatalf("fetch called %d times, want 1", called)
	}

	if _, ok, err := readEntry[string](cache, "missing"); !ok || err != nil {
		t.Fatalf("expected entry stored after miss, ok=%v err=%v", ok, err)
	}
}

func TestGetOrFetch_CorruptEntryRefetches(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir)
	if err := os.WriteFile(filepath.Join(dir, processesKey+fileExt), []byte("not zstd"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt entry: %v", err)
	}

	got, err := GetOrFetch(cache, context.Background(), processesKey, func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	if err != nil {
		t.Fatalf("GetOrFetch error: %v", err)
	}
	if got.Data != "fresh" {
		t.Errorf("got %q, want %q", got.Data, "fresh")
	}
}

func TestGetOrFetch_NilCachePassesThrough(t *testing.T) {
	var cache *Cache
	got, err := GetOrFetch(cache, context.Background(), "k", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || got.Data != 42 {
		t.Fatalf("got %v, %v; want 42, nil", got.Data, err)
	}
}

func TestInvalidatePrefix(t *testing.T) {
	cache := New(t.TempDir(), WithTTLs(5*time.Minute, time.Hour))

	local := Key("http://localhost:8082", "processes")
	localMetrics := Key("http://localhost:8082", "metrics_abc")
	remote := Key("https://query.example.com", "processes")
	for _, key := range []string{local, localMetrics, remote} {
		if err := writeEntry(cache, key, Entry[string]{Data: key, FetchedAt: time.Now()}); err != nil {
			t.Fatalf("writeEntry error: %v", err)
		}
	}

	if err := cache.InvalidatePrefix(Key("http://localhost:8082", "")); err != nil {
		t.Fatalf("InvalidatePrefix error: %v", err)
	}

	if _, ok, _ := readEntry[string](cache, local); ok {
		t.Fatal("expected local processes to be removed")
	}
	if _, ok, _ := readEntry[string](cache, localMetrics); ok {
		t.Fatal("expected local metrics to be removed")
	}
	if _, ok, _ := readEntry[string](cache, remote); !ok {
		t.Fatal("expected remote processes to remain")
	}

	if err := cache.Invalidate(remote); err != nil {
		t.Fatalf("Invalidate error: %v", err)
	}
	if _, ok, _ := readEntry[string](cache, remote); ok {
		t.Fatal("expected remote processes to be removed")
	}
}
