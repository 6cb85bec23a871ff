// Package sqlite provides a SQLite-backed directory storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tapinapp/beacon/internal/directory"
	"github.com/tapinapp/beacon/internal/directory/sqlite/migrations"
	sqlitemigrate "github.com/tapinapp/beacon/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store persists directory identities in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite directory store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutIdentity upserts one identity record keyed by id.
func (s *Store) PutIdentity(ctx context.Context, identity directory.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	identityID := strings.TrimSpace(identity.ID)
	if identityID == "" {
		return fmt.Errorf("identity id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO identities (id, display_name, email, phone_key)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   display_name = excluded.display_name,
		   email = excluded.email,
		   phone_key = excluded.phone_key`,
		identityID,
		strings.TrimSpace(identity.DisplayName),
		strings.TrimSpace(identity.Email),
		strings.TrimSpace(identity.PhoneKey),
	)
	if err != nil {
		return fmt.Errorf("put identity: %w", err)
	}
	return nil
}

// GetIdentity returns one identity record by id.
func (s *Store) GetIdentity(ctx context.Context, identityID string) (directory.Identity, error) {
	if err := ctx.Err(); err != nil {
		return directory.Identity{}, err
	}
	if s == nil || s.sqlDB == nil {
		return directory.Identity{}, fmt.Errorf("storage is not configured")
	}
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return directory.Identity{}, fmt.Errorf("identity id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, display_name, email, phone_key
		 FROM identities
		 WHERE id = ?`,
		identityID,
	)
	var identity directory.Identity
	err := row.Scan(
		&identity.ID,
		&identity.DisplayName,
		&identity.Email,
		&identity.PhoneKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return directory.Identity{}, directory.ErrNotFound
		}
		return directory.Identity{}, fmt.Errorf("get identity: %w", err)
	}
	return identity, nil
}

// LookupByPhoneKeys resolves canonical phone keys to identities in one query.
// Keys that match nobody are reported in NotFound rather than failing the batch.
func (s *Store) LookupByPhoneKeys(ctx context.Context, keys []string) (directory.LookupResult, error) {
	if err := ctx.Err(); err != nil {
		return directory.LookupResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return directory.LookupResult{}, fmt.Errorf("storage is not configured")
	}

	unique := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, key)
	}
	if len(unique) == 0 {
		return directory.LookupResult{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(unique)), ",")
	args := make([]any, len(unique))
	for i, key := range unique {
		args[i] = key
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, display_name, email, phone_key
		 FROM identities
		 WHERE phone_key IN (`+placeholders+`)
		 ORDER BY id ASC`,
		args...,
	)
	if err != nil {
		return directory.LookupResult{}, fmt.Errorf("lookup by phone keys: %w", err)
	}
	defer rows.Close()

	result := directory.LookupResult{}
	matched := make(map[string]bool, len(unique))
	for rows.Next() {
		var identity directory.Identity
		if err := rows.Scan(
			&identity.ID,
			&identity.DisplayName,
			&identity.Email,
			&identity.PhoneKey,
		); err != nil {
			return directory.LookupResult{}, fmt.Errorf("lookup by phone keys: %w", err)
		}
		matched[identity.PhoneKey] = true
		result.Matched = append(result.Matched, identity)
	}
	if err := rows.Err(); err != nil {
		return directory.LookupResult{}, fmt.Errorf("lookup by phone keys: %w", err)
	}

	for _, key := range unique {
		if !matched[key] {
			result.NotFound = append(result.NotFound, key)
		}
	}
	return result, nil
}

var _ directory.Store = (*Store)(nil)
