package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

// CachingFetcher memoizes a Fetcher's successful responses on disk for a fixed TTL, so repeated
// runs over the same query reuse earlier results. Entries are decoded fresh on every hit and
// never shared between callers.
type CachingFetcher struct {
	next Fetcher
	dir  string
	ttl  time.Duration
	now  func() time.Time
}

type cacheEntry struct {
	Expires time.Time       `json:"expires"`
	Payload json.RawMessage `json:"payload"`
}

// NewCachingFetcher wraps next, keeping entries under dir. A non-positive ttl disables caching.
func NewCachingFetcher(next Fetcher, dir string, ttl time.Duration) *CachingFetcher {
	return &CachingFetcher{
		next: next,
		dir:  dir,
		ttl:  ttl,
		now:  time.Now,
	}
}

func (c *CachingFetcher) FetchPRStats(ctx context.Context, q domain.Query) (*domain.StatsPayload, error) {
	key := cacheKey("pr", q)
	var cached domain.StatsPayload
	if c.lookup(key, &cached) {
		return &cached, nil
	}
	payload, err := c.next.FetchPRStats(ctx, q)
	if err != nil {
		return nil, err
	}
	c.store(key, payload)
	return payload, nil
}

func (c *CachingFetcher) FetchReviewStats(ctx context.Context, q domain.Query) (*domain.ReviewStatsPayload, error) {
	key := cacheKey("review", q)
	var cached domain.ReviewStatsPayload
	if c.lookup(key, &cached) {
		return &cached, nil
	}
	payload, err := c.next.FetchReviewStats(ctx, q)
	if err != nil {
		return nil, err
	}
	c.store(key, payload)
	return payload, nil
}

// lookup decodes a live entry into out. Missing, corrupt and expired entries are misses.
func (c *CachingFetcher) lookup(key string, out any) bool {
	if c.ttl <= 0 {
		return false
	}
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return false
	}
	var e cacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return false
	}
	if !c.now().Before(e.Expires) {
		_ = os.Remove(c.path(key))
		return false
	}
	return json.Unmarshal(e.Payload, out) == nil
}

// store writes an entry. Failures are ignored: the fetched payload is still returned.
func (c *CachingFetcher) store(key string, value any) {
	if c.ttl <= 0 {
		return
	}
	_ = c.write(key, value)
}

func (c *CachingFetcher) write(key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	data, err := json.Marshal(cacheEntry{Expires: c.now().Add(c.ttl), Payload: payload})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return err
	}
	// Write then rename so concurrent runs never read a partial entry.
	tmp, err := os.CreateTemp(c.dir, "entry-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}

// Clear removes every cached entry.
func (c *CachingFetcher) Clear() error {
	err := os.RemoveAll(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *CachingFetcher) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

func cacheKey(kind string, q domain.Query) string {
	// Query holds only plain values, so marshalling cannot fail.
	b, _ := json.Marshal(q)
	return kind + ":" + string(b)
}
