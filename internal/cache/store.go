package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Store is a durable key/value store with optional per-entry expiry, backed
// by a SQLite database so entries survive process restarts. It is safe for
// concurrent use within a single process.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Stats describes the store contents.
type Stats struct {
	Path        string
	Total       int
	Valid       int
	Expired     int
	SizeBytes   int64
	ByNamespace map[string]NamespaceStats
}

// NamespaceStats is the per-namespace breakdown inside Stats.
type NamespaceStats struct {
	Total     int
	Valid     int
	Expired   int
	SizeBytes int64
}

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	metadata   BLOB,
	created_at INTEGER NOT NULL,
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`

// OpenStore opens (creating if necessary) the cache database under dir.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := filepath.Join(dir, "review-tally.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent batch completions.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Get returns the value stored under key, or ok=false when the key is
// missing or the entry has expired. Expired entries are indistinguishable
// from absent ones.
func (s *Store) Get(key string) (value []byte, ok bool, err error) {
	var expires sql.NullInt64
	row := s.db.QueryRow(`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key)
	if err := row.Scan(&value, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if expires.Valid && expires.Int64 <= s.now().Unix() {
		return nil, false, nil
	}
	return value, true, nil
}

// Metadata returns the metadata payload stored alongside key, subject to the
// same expiry rules as Get.
func (s *Store) Metadata(key string) (meta []byte, ok bool, err error) {
	var expires sql.NullInt64
	row := s.db.QueryRow(`SELECT metadata, expires_at FROM cache_entries WHERE key = ?`, key)
	if err := row.Scan(&meta, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache metadata %s: %w", key, err)
	}
	if expires.Valid && expires.Int64 <= s.now().Unix() {
		return nil, false, nil
	}
	return meta, true, nil
}

// Set stores value (and optional metadata) under key, atomically replacing
// any previous entry. ttl <= 0 means the entry never expires.
func (s *Store) Set(key string, value, metadata []byte, ttl time.Duration) error {
	now := s.now()
	var expires sql.NullInt64
	if ttl > 0 {
		expires = sql.NullInt64{Int64: now.Add(ttl).Unix(), Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO cache_entries (key, value, metadata, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			metadata = excluded.metadata,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		key, value, metadata, now.Unix(), expires)
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// ListKeys returns every non-expired key starting with prefix.
func (s *Store) ListKeys(prefix string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT key FROM cache_entries
		WHERE key LIKE ? || '%' AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY key`,
		prefix, s.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("cache list %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// CleanupExpired removes every expired entry and reports how many were
// removed.
func (s *Store) CleanupExpired() (int, error) {
	res, err := s.db.Exec(`DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ClearAll removes every entry unconditionally and reports the count.
func (s *Store) ClearAll() (int, error) {
	res, err := s.db.Exec(`DELETE FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Stats summarizes the store contents, broken down by key namespace (the
// text before the first colon in each key).
func (s *Store) Stats() (*Stats, error) {
	rows, err := s.db.Query(`
		SELECT
			CASE WHEN instr(key, ':') > 0 THEN substr(key, 1, instr(key, ':') - 1) ELSE key END,
			COUNT(*),
			SUM(CASE WHEN expires_at IS NULL OR expires_at > ? THEN 1 ELSE 0 END),
			SUM(length(value) + COALESCE(length(metadata), 0))
		FROM cache_entries
		GROUP BY 1`,
		s.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{Path: s.path, ByNamespace: make(map[string]NamespaceStats)}
	for rows.Next() {
		var ns string
		var total, valid int
		var size int64
		if err := rows.Scan(&ns, &total, &valid, &size); err != nil {
			return nil, err
		}
		stats.ByNamespace[ns] = NamespaceStats{
			Total:     total,
			Valid:     valid,
			Expired:   total - valid,
			SizeBytes: size,
		}
		stats.Total += total
		stats.Valid += valid
		stats.SizeBytes += size
	}
	stats.Expired = stats.Total - stats.Valid
	return stats, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
