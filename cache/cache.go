// Package cache provides a namespaced key-value cache with TTL expiry,
// backed by SQLite and fronted by an in-process LRU layer.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"
)

// Cache namespaces, one per external source.
const (
	NamespaceEbay    = "ebay"
	NamespaceCatalog = "rgp"
	NamespaceFX      = "fx"
)

// TTLs per namespace. Auction prices drift faster than catalog prices.
const (
	TTLEbay    = 3 * 24 * time.Hour
	TTLCatalog = 7 * 24 * time.Hour
	TTLFX      = 24 * time.Hour
	DefaultTTL = 7 * 24 * time.Hour
)

const memEntries = 1024

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is safe for concurrent use. Writes are idempotent upserts keyed
// by (namespace, key hash); an entry is visible only while unexpired.
type Cache struct {
	db  *sql.DB
	mem *lru.Cache[string, memEntry]
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cache (
			namespace  TEXT NOT NULL,
			key_hash   TEXT NOT NULL,
			key_raw    TEXT NOT NULL,
			value      TEXT NOT NULL,
			created_at REAL NOT NULL,
			expires_at REAL NOT NULL,
			hit_count  INTEGER DEFAULT 0,
			PRIMARY KEY (namespace, key_hash)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_expires_at ON cache (expires_at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache index: %w", err)
	}

	mem, err := lru.New[string, memEntry](memEntries)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init memory layer: %w", err)
	}

	return &Cache{db: db, mem: mem}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func memKey(namespace, keyHash string) string {
	return namespace + "\x00" + keyHash
}

// Get returns the cached value for (namespace, key), or ok=false when
// absent or expired.
func (c *Cache) Get(namespace, key string) (json.RawMessage, bool, error) {
	keyHash := hashKey(key)
	now := time.Now()

	if entry, ok := c.mem.Get(memKey(namespace, keyHash)); ok {
		if now.Before(entry.expiresAt) {
			return entry.value, true, nil
		}
		c.mem.Remove(memKey(namespace, keyHash))
	}

	var (
		value     string
		expiresAt float64
	)
	err := c.db.QueryRow(
		`SELECT value, expires_at FROM cache
		 WHERE namespace = ? AND key_hash = ? AND expires_at > ?`,
		namespace, keyHash, float64(now.UnixNano())/1e9,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	if _, err := c.db.Exec(
		`UPDATE cache SET hit_count = hit_count + 1 WHERE namespace = ? AND key_hash = ?`,
		namespace, keyHash,
	); err != nil {
		return nil, false, fmt.Errorf("cache hit count: %w", err)
	}

	raw := json.RawMessage(value)
	c.mem.Add(memKey(namespace, keyHash), memEntry{
		value:     raw,
		expiresAt: time.Unix(0, int64(expiresAt*1e9)),
	})
	return raw, true, nil
}

// Set stores value (JSON-serializable) under (namespace, key) with the
// given TTL, replacing any prior entry and resetting its expiry.
func (c *Cache) Set(namespace, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}

	keyHash := hashKey(key)
	now := time.Now()
	expiresAt := now.Add(ttl)

	if _, err := c.db.Exec(
		`INSERT OR REPLACE INTO cache
		 (namespace, key_hash, key_raw, value, created_at, expires_at, hit_count)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		namespace, keyHash, key, string(data),
		float64(now.UnixNano())/1e9, float64(expiresAt.UnixNano())/1e9,
	); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}

	c.mem.Add(memKey(namespace, keyHash), memEntry{value: data, expiresAt: expiresAt})
	return nil
}

// Delete removes one entry, reporting whether it existed.
func (c *Cache) Delete(namespace, key string) (bool, error) {
	keyHash := hashKey(key)
	c.mem.Remove(memKey(namespace, keyHash))

	res, err := c.db.Exec(
		`DELETE FROM cache WHERE namespace = ? AND key_hash = ?`,
		namespace, keyHash,
	)
	if err != nil {
		return false, fmt.Errorf("cache delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cache delete: %w", err)
	}
	return n > 0, nil
}

// ClearNamespace removes all entries in one namespace.
func (c *Cache) ClearNamespace(namespace string) (int64, error) {
	c.mem.Purge()
	res, err := c.db.Exec(`DELETE FROM cache WHERE namespace = ?`, namespace)
	if err != nil {
		return 0, fmt.Errorf("cache clear namespace: %w", err)
	}
	return res.RowsAffected()
}

// ClearAll empties the cache.
func (c *Cache) ClearAll() (int64, error) {
	c.mem.Purge()
	res, err := c.db.Exec(`DELETE FROM cache`)
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	return res.RowsAffected()
}

// CleanupExpired deletes entries past their expiry.
func (c *Cache) CleanupExpired() (int64, error) {
	res, err := c.db.Exec(
		`DELETE FROM cache WHERE expires_at < ?`,
		float64(time.Now().UnixNano())/1e9,
	)
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	return res.RowsAffected()
}

// NamespaceStats summarizes one namespace.
type NamespaceStats struct {
	Entries int64
	Hits    int64
}

// Stats returns per-namespace entry/hit counts and the expired backlog.
func (c *Cache) Stats() (map[string]NamespaceStats, int64, error) {
	rows, err := c.db.Query(
		`SELECT namespace, COUNT(*), COALESCE(SUM(hit_count), 0)
		 FROM cache GROUP BY namespace`)
	if err != nil {
		return nil, 0, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]NamespaceStats)
	for rows.Next() {
		var (
			ns string
			s  NamespaceStats
		)
		if err := rows.Scan(&ns, &s.Entries, &s.Hits); err != nil {
			return nil, 0, fmt.Errorf("cache stats scan: %w", err)
		}
		stats[ns] = s
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("cache stats rows: %w", err)
	}

	var expired int64
	if err := c.db.QueryRow(
		`SELECT COUNT(*) FROM cache WHERE expires_at < ?`,
		float64(time.Now().UnixNano())/1e9,
	).Scan(&expired); err != nil {
		return nil, 0, fmt.Errorf("cache stats expired: %w", err)
	}

	return stats, expired, nil
}

// BuildKey builds a deterministic cache key from named fields: sorted by
// name, joined as k=v|k=v, empty values skipped.
func BuildKey(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name, value := range fields {
		if value == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+fields[name])
	}
	return strings.Join(parts, "|")
}
