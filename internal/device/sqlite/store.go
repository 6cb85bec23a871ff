// Package sqlite provides a SQLite-backed device-token store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tapinapp/beacon/internal/device"
	"github.com/tapinapp/beacon/internal/device/sqlite/migrations"
	sqlitemigrate "github.com/tapinapp/beacon/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store persists device push tokens in SQLite.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

// Open opens a SQLite device-token store and applies embedded migrations.
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
	return &Store{sqlDB: sqlDB, clock: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutToken records recipientID's current device token, replacing any
// previous one.
func (s *Store) PutToken(ctx context.Context, recipientID string, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	recipientID = strings.TrimSpace(recipientID)
	token = strings.TrimSpace(token)
	if recipientID == "" {
		return device.ErrRecipientIDRequired
	}
	if token == "" {
		return device.ErrDeviceTokenRequired
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO device_tokens (recipient_id, token, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(recipient_id) DO UPDATE SET
		   token = excluded.token,
		   updated_at = excluded.updated_at`,
		recipientID,
		token,
		s.clock().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put device token: %w", err)
	}
	return nil
}

// Lookup returns recipientID's current device token. A recipient without a
// registration yields "" and no error.
func (s *Store) Lookup(ctx context.Context, recipientID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return "", device.ErrRecipientIDRequired
	}

	var token string
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT token FROM device_tokens WHERE recipient_id = ?`,
		recipientID,
	).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("lookup device token: %w", err)
	}
	return token, nil
}

// DeleteToken drops recipientID's registration. Missing rows are no-ops.
func (s *Store) DeleteToken(ctx context.Context, recipientID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return device.ErrRecipientIDRequired
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM device_tokens WHERE recipient_id = ?`,
		recipientID,
	)
	if err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}

var _ device.TokenStore = (*Store)(nil)
