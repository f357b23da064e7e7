// Package cache persists intermediate per-pixel results so that an
// interrupted or repeated run only recomputes what changed. Entries are keyed
// by stage, stage version, pixel and a fingerprint of the stage's inputs.
package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/rainseason/internal/log"
	"github.com/chrissnell/rainseason/pkg/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Key identifies one cached stage output
type Key struct {
	Stage   string
	Version int
	Label   string
	Digest  uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%s/v%d/%s/%016x", k.Stage, k.Version, k.Label, k.Digest)
}

func (k Key) digest() string {
	return strconv.FormatUint(k.Digest, 16)
}

// StageStats summarises the entries of one stage version
type StageStats struct {
	Stage   string `json:"stage" msgpack:"stage"`
	Version int    `json:"version" msgpack:"version"`
	Entries int64  `json:"entries" msgpack:"entries"`
	Bytes   int64  `json:"bytes" msgpack:"bytes"`
}

// Store is a SQLite-backed stage cache. A nil *Store is a valid, disabled
// cache: lookups miss and saves are dropped.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.SugaredLogger
}

// Open opens or creates the cache database at path
func Open(ctx context.Context, path string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = log.GetSugaredLogger()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// SQLite allows one writer; workers queue on the pool instead of on SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise cache database: %w", err)
	}
	m := migrate.NewMigrator(db, migrate.NewFSProvider(migrations, "migrations", "stage_cache_migrations"), logger)
	if err := m.MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}

	logger.Debugf("opened stage cache at %s", path)
	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Load decodes the entry for key into v. It reports false on a miss.
func (s *Store) Load(ctx context.Context, key Key, v any) (bool, error) {
	if s == nil {
		return false, nil
	}

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM stage_cache WHERE stage = ? AND version = ? AND label = ? AND digest = ?`,
		key.Stage, key.Version, key.Label, key.digest()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache lookup %s: %w", key, err)
	}

	if err := msgpack.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("cache entry %s is unreadable: %w", key, err)
	}
	return true, nil
}

// Save stores v under key, replacing any previous entry
func (s *Store) Save(ctx context.Context, key Key, v any) error {
	if s == nil {
		return nil
	}

	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not encode cache entry %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stage_cache (stage, version, label, digest, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (stage, version, label, digest)
		DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		key.Stage, key.Version, key.Label, key.digest(), payload, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("cache write %s: %w", key, err)
	}
	return nil
}

// GetOrCompute returns the cached value for key, or computes and stores it.
// The boolean reports a cache hit. A failed computation is not cached.
func GetOrCompute[T any](ctx context.Context, s *Store, key Key, compute func() (T, error)) (T, bool, error) {
	var v T
	hit, err := s.Load(ctx, key, &v)
	if err != nil {
		// an unreadable entry is recomputed and overwritten
		s.logger.Warnf("ignoring cache entry: %v", err)
		hit = false
	}
	if hit {
		return v, true, nil
	}

	v, err = compute()
	if err != nil {
		return v, false, err
	}
	if err := s.Save(ctx, key, v); err != nil {
		return v, false, err
	}
	return v, false, nil
}

// Latest decodes the most recently written entry of stage for label,
// whatever its version or digest, into v
func (s *Store) Latest(ctx context.Context, stage, label string, v any) (Key, bool, error) {
	if s == nil {
		return Key{}, false, nil
	}

	var (
		key     = Key{Stage: stage, Label: label}
		digest  string
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT version, digest, payload FROM stage_cache
		WHERE stage = ? AND label = ?
		ORDER BY version DESC, created_at DESC LIMIT 1`,
		stage, label).Scan(&key.Version, &digest, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Key{}, false, nil
	}
	if err != nil {
		return Key{}, false, fmt.Errorf("cache lookup %s/%s: %w", stage, label, err)
	}

	if key.Digest, err = strconv.ParseUint(digest, 16, 64); err != nil {
		return Key{}, false, fmt.Errorf("cache entry %s/%s has a bad digest %q: %w", stage, label, digest, err)
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return Key{}, false, fmt.Errorf("cache entry %s is unreadable: %w", key, err)
	}
	return key, true, nil
}

// Labels returns the pixels with at least one entry in stage, in label order
func (s *Store) Labels(ctx context.Context, stage string) ([]string, error) {
	if s == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT label FROM stage_cache WHERE stage = ? ORDER BY label`, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached pixels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// Stats returns entry counts and payload sizes per stage version
func (s *Store) Stats(ctx context.Context) ([]StageStats, error) {
	if s == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, version, COUNT(*), COALESCE(SUM(LENGTH(payload)), 0)
		FROM stage_cache GROUP BY stage, version ORDER BY stage, version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache stats: %w", err)
	}
	defer rows.Close()

	var stats []StageStats
	for rows.Next() {
		var st StageStats
		if err := rows.Scan(&st.Stage, &st.Version, &st.Entries, &st.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan cache stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Purge deletes the entries of stage older than belowVersion. An empty stage
// purges every stage.
func (s *Store) Purge(ctx context.Context, stage string, belowVersion int) (int64, error) {
	if s == nil {
		return 0, nil
	}

	var (
		res sql.Result
		err error
	)
	if stage == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM stage_cache WHERE version < ?`, belowVersion)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM stage_cache WHERE stage = ? AND version < ?`, stage, belowVersion)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.logger.Infof("purged %d cache entries from %s", n, s.path)
	return n, nil
}

// Fingerprint hashes the msgpack encoding of parts. Equal inputs give equal
// digests across runs and machines.
func Fingerprint(parts ...any) (uint64, error) {
	h := xxhash.New()
	enc := msgpack.NewEncoder(h)
	enc.SetSortMapKeys(true)
	for _, p := range parts {
		if err := enc.Encode(p); err != nil {
			return 0, fmt.Errorf("could not fingerprint %T: %w", p, err)
		}
	}
	return h.Sum64(), nil
}
