// Package sqlite provides a SQLite-backed room membership store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/tapinapp/beacon/internal/platform/storage/sqlitemigrate"
	"github.com/tapinapp/beacon/internal/room"
	"github.com/tapinapp/beacon/internal/room/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists room membership in SQLite.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

// Open opens a SQLite room store and applies embedded migrations.
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

// AddMember records identityID as a member of roomID. Replays are no-ops.
func (s *Store) AddMember(ctx context.Context, roomID string, identityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	roomID = strings.TrimSpace(roomID)
	identityID = strings.TrimSpace(identityID)
	if roomID == "" {
		return room.ErrRoomIDRequired
	}
	if identityID == "" {
		return room.ErrMemberIDRequired
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO room_members (room_id, identity_id, added_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(room_id, identity_id) DO NOTHING`,
		roomID,
		identityID,
		s.clock().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("add room member: %w", err)
	}
	return nil
}

// RemoveMember drops identityID from roomID's membership.
func (s *Store) RemoveMember(ctx context.Context, roomID string, identityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	roomID = strings.TrimSpace(roomID)
	identityID = strings.TrimSpace(identityID)
	if roomID == "" {
		return room.ErrRoomIDRequired
	}
	if identityID == "" {
		return room.ErrMemberIDRequired
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM room_members WHERE room_id = ? AND identity_id = ?`,
		roomID,
		identityID,
	)
	if err != nil {
		return fmt.Errorf("remove room member: %w", err)
	}
	return nil
}

// ListMembers returns the persisted membership of roomID ordered by identity id.
func (s *Store) ListMembers(ctx context.Context, roomID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, room.ErrRoomIDRequired
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT identity_id FROM room_members WHERE room_id = ? ORDER BY identity_id ASC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list room members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var identityID string
		if err := rows.Scan(&identityID); err != nil {
			return nil, fmt.Errorf("list room members: %w", err)
		}
		members = append(members, identityID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list room members: %w", err)
	}
	return members, nil
}

var _ room.MemberStore = (*Store)(nil)
