package config

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/rainseason/pkg/migrate"
)

// DefaultProfile is the profile used when none is named
const DefaultProfile = "default"

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// Each profile is a set of dotted keys (e.g. mask.min_rangeland_fraction)
// with YAML-encoded values, applied on top of DefaultConfig.
type SQLiteProvider struct {
	db      *sql.DB
	dbPath  string
	profile string
}

// NewSQLiteProvider creates a new SQLite configuration provider for profile
func NewSQLiteProvider(dbPath, profile string) (*SQLiteProvider, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise configuration schema: %w", err)
	}
	m := migrate.NewMigrator(db, migrate.NewFSProvider(migrations, "migrations", "config_migrations"), nil)
	if err := m.MigrateUp(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:      db,
		dbPath:  dbPath,
		profile: profile,
	}, nil
}

// LoadConfig loads the profile's configuration from the database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	settings, err := s.Settings()
	if err != nil {
		return nil, err
	}
	if len(settings) == 0 {
		exists, err := s.profileExists()
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("configuration profile %q not found in %s", s.profile, s.dbPath)
		}
	}

	config, err := unflatten(settings)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", s.profile, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in profile %q: %w", s.profile, err)
	}
	return config, nil
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	config, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Storage, nil
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Settings returns the profile's raw key/value pairs
func (s *SQLiteProvider) Settings() (map[string]string, error) {
	rows, err := s.db.Query(`
		SELECT st.key, st.value FROM settings st
		JOIN configs c ON c.id = st.config_id
		WHERE c.name = ?`, s.profile)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting row: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// Write methods for configuration management

// SaveConfig replaces the profile with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	if err := configData.Validate(); err != nil {
		return err
	}
	settings, err := flatten(configData)
	if err != nil {
		return err
	}

	// Start transaction
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM settings WHERE config_id = ?`, configID); err != nil {
		return fmt.Errorf("failed to clear existing settings: %w", err)
	}
	for k, v := range settings {
		if _, err := tx.Exec(`INSERT INTO settings (config_id, key, value) VALUES (?, ?, ?)`, configID, k, v); err != nil {
			return fmt.Errorf("failed to insert setting %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// SetSetting stores a single dotted key. The value is parsed as YAML, and
// the resulting profile must still load.
func (s *SQLiteProvider) SetSetting(key, value string) error {
	current, err := s.Settings()
	if err != nil {
		return err
	}
	current[key] = value
	if _, err := unflatten(current); err != nil {
		return fmt.Errorf("setting %s=%s: %w", key, value, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO settings (config_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT (config_id, key) DO UPDATE SET value = excluded.value`, configID, key, value)
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	if _, err := tx.Exec(`UPDATE configs SET updated_at = datetime('now') WHERE id = ?`, configID); err != nil {
		return err
	}
	return tx.Commit()
}

// Profiles lists the stored profile names
func (s *SQLiteProvider) Profiles() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM configs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLiteProvider) profileExists() (bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM configs WHERE name = ?`, s.profile).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteProvider) getOrCreateConfigID(tx *sql.Tx) (int64, error) {
	_, err := tx.Exec(`
		INSERT INTO configs (name, created_at, updated_at) VALUES (?, datetime('now'), datetime('now'))
		ON CONFLICT (name) DO UPDATE SET updated_at = excluded.updated_at`, s.profile)
	if err != nil {
		return 0, fmt.Errorf("failed to create profile %q: %w", s.profile, err)
	}

	var id int64
	if err := tx.QueryRow(`SELECT id FROM configs WHERE name = ?`, s.profile).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to look up profile %q: %w", s.profile, err)
	}
	return id, nil
}

// flatten turns a configuration into dotted keys with YAML-encoded values
func flatten(c *ConfigData) (map[string]string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	var tree yaml.MapSlice
	if err := yaml.Unmarshal(b, &tree); err != nil {
		return nil, err
	}

	out := make(map[string]string)
	var walk func(prefix string, node yaml.MapSlice) error
	walk = func(prefix string, node yaml.MapSlice) error {
		for _, item := range node {
			key := fmt.Sprint(item.Key)
			if prefix != "" {
				key = prefix + "." + key
			}
			if child, ok := item.Value.(yaml.MapSlice); ok {
				if err := walk(key, child); err != nil {
					return err
				}
				continue
			}
			v, err := yaml.Marshal(item.Value)
			if err != nil {
				return fmt.Errorf("could not encode %s: %w", key, err)
			}
			out[key] = strings.TrimSpace(string(v))
		}
		return nil
	}
	if err := walk("", tree); err != nil {
		return nil, err
	}
	return out, nil
}

// unflatten applies dotted settings on top of DefaultConfig
func unflatten(settings map[string]string) (*ConfigData, error) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tree := map[interface{}]interface{}{}
	for _, k := range keys {
		var v interface{}
		if err := yaml.Unmarshal([]byte(settings[k]), &v); err != nil {
			return nil, fmt.Errorf("setting %s: %w", k, err)
		}

		parts := strings.Split(k, ".")
		node := tree
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[interface{}]interface{})
			if !ok {
				if _, taken := node[p]; taken {
					return nil, fmt.Errorf("setting %s conflicts with a value at %s", k, p)
				}
				child = map[interface{}]interface{}{}
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}

	b, err := yaml.Marshal(tree)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	if err := yaml.UnmarshalStrict(b, config); err != nil {
		return nil, err
	}
	return config, nil
}
