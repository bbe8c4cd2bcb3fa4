// Package swrcache keeps slow-changing catalog answers, such as the process
// list, on disk and serves them stale-while-revalidate.
package swrcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	defaultFreshTTL = 30 * time.Second
	defaultMaxStale = 24 * time.Hour
	refreshTimeout  = 30 * time.Second
	fileExt         = ".json.zst"
)

// ErrStale wraps a fetch error when GetOrFetch fell back to an expired entry.
var ErrStale = errors.New("serving stale cache entry")

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil)
)

// Cache provides stale-while-revalidate caching with file-backed,
// zstd-compressed JSON storage.
type Cache struct {
	dir      string
	freshTTL time.Duration
	maxStale time.Duration
	logger   zerolog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTLs sets how long entries are fresh and how long past that they may
// still be served while a refresh runs. A non-positive maxStale serves stale
// entries forever.
func WithTTLs(freshTTL, maxStale time.Duration) Option {
	return func(c *Cache) {
		c.freshTTL = freshTTL
		c.maxStale = maxStale
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New returns a cache rooted at dir.
func New(dir string, opts ...Option) *Cache {
	c := &Cache{
		dir:      dir,
		freshTTL: defaultFreshTTL,
		maxStale: defaultMaxStale,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefault returns a cache rooted at the OS user cache dir.
func NewDefault(opts ...Option) *Cache {
	return New(defaultDir(), opts...)
}

// GetOrFetch returns cached data using stale-while-revalidate semantics:
//   - fresh entries are returned as is
//   - stale entries are returned while a background refresh runs
//   - missing or expired entries are fetched synchronously
//
// When a synchronous fetch fails and an expired entry exists, that entry is
// returned together with an error wrapping ErrStale.
func GetOrFetch[T any](c *Cache, ctx context.Context, key string, fetch func(context.Context) (T, error)) (Entry[T], error) {
	if c == nil || c.dir == "" {
		data, err := fetch(ctx)
		return Entry[T]{Data: data, FetchedAt: time.Now()}, err
	}

	entry, ok, err := readEntry[T](c, key)
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("unreadable cache entry")
	}
	if err != nil || !ok || entry.FetchedAt.IsZero() {
		return fetchAndStore(c, ctx, key, fetch)
	}

	age := entry.Age(c.now())
	if age < 0 {
		return fetchAndStore(c, ctx, key, fetch)
	}

	if age <= c.freshTTL {
		return entry, nil
	}

	if c.maxStale <= 0 || age <= c.maxStale {
		revalidate(c, key, fetch)
		return entry, nil
	}

	fresh, err := fetchAndStore(c, ctx, key, fetch)
	if err != nil {
		return entry, fmt.Errorf("%w (fetched %s ago): %w", ErrStale, age.Round(time.Second), err)
	}
	return fresh, nil
}

// Invalidate removes a single cached entry.
func (c *Cache) Invalidate(key string) error {
	if c == nil || c.dir == "" {
		return nil
	}

	err := os.Remove(c.pathForKey(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// InvalidatePrefix removes cached entries with the given key prefix.
func (c *Cache) InvalidatePrefix(prefix string) error {
	if c == nil || c.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	sanitized := sanitizeKey(prefix)
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, sanitized) {
			if err := os.RemoveAll(filepath.Join(c.dir, name)); err != nil {
				return err
			}
		}
	}

	return nil
}

func fetchAndStore[T any](c *Cache, ctx context.Context, key string, fetch func(context.Context) (T, error)) (Entry[T], error) {
	data, err := fetch(ctx)
	if err != nil {
		return Entry[T]{}, err
	}
	entry := Entry[T]{Data: data, FetchedAt: c.now()}
	if err := writeEntry(c, key, entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to write cache entry")
	}
	return entry, nil
}

// revalidate refreshes key in the background. Concurrent refreshes of one key
// share a single fetch.
func revalidate[T any](c *Cache, key string, fetch func(context.Context) (T, error)) {
	go func() {
		_, _, _ = c.group.Do(key, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()
			data, err := fetch(ctx)
			if err != nil {
				c.logger.Debug().Err(err).Str("key", key).Msg("background refresh failed")
				return nil, err
			}
			return nil, writeEntry(c, key, Entry[T]{Data: data, FetchedAt: c.now()})
		})
	}()
}

func readEntry[T any](c *Cache, key string) (Entry[T], bool, error) {
	var zero Entry[T]
	raw, err := os.ReadFile(c.pathForKey(key))
	if err != nil {
		if os.IsNotExist(err) {
			return zero, false, nil
		}
		return zero, false, err
	}

	data, err := decoder.DecodeAll(raw, nil)
	if err != nil {
		return zero, false, fmt.Errorf("swrcache: corrupt entry %q: %w", key, err)
	}
	var entry Entry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		return zero, false, fmt.Errorf("swrcache: malformed entry %q: %w", key, err)
	}

	return entry, true, nil
}

func writeEntry[T any](c *Cache, key string, entry Entry[T]) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	payload = encoder.EncodeAll(payload, nil)

	tmp, err := os.CreateTemp(c.dir, sanitizeKey(key)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}

	return os.Rename(name, c.pathForKey(key))
}

func (c *Cache) pathForKey(key string) string {
	return filepath.Join(c.dir, sanitizeKey(key)+fileExt)
}

func defaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "sirius", "catalog")
}

// Key builds a cache key for a query service address and a resource, so
// switching backends never serves another backend's catalog.
func Key(backendURL, resource string) string {
	return sanitizeKey(backendURL) + "_" + resource
}

func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "cache"
	}

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		ch := key[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '-' || ch == '_' {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
