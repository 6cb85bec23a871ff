// Package sqlite provides a SQLite-backed roster storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/tapinapp/beacon/internal/platform/storage/sqlitemigrate"
	"github.com/tapinapp/beacon/internal/roster"
	"github.com/tapinapp/beacon/internal/roster/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists roster edges in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite roster store and applies embedded migrations.
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

// PutEdge inserts one directed edge. An existing (owner, contact) pair is
// left untouched so the add-time display name survives replays.
func (s *Store) PutEdge(ctx context.Context, edge roster.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	ownerID := strings.TrimSpace(edge.OwnerID)
	contactID := strings.TrimSpace(edge.ContactID)
	if ownerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if contactID == "" {
		return fmt.Errorf("contact id is required")
	}
	if ownerID == contactID {
		return fmt.Errorf("contact id must differ from owner id")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO roster_edges (owner_id, contact_id, display_name, group_label, subscribed, persistent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id, contact_id) DO NOTHING`,
		ownerID,
		contactID,
		edge.DisplayName,
		edge.GroupLabel,
		boolToInt(edge.Subscribed),
		boolToInt(edge.Persistent),
		toMillis(edge.CreatedAt),
		toMillis(edge.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put roster edge: %w", err)
	}
	return nil
}

// GetEdge returns one directed edge.
func (s *Store) GetEdge(ctx context.Context, ownerID string, contactID string) (roster.Edge, error) {
	if err := ctx.Err(); err != nil {
		return roster.Edge{}, err
	}
	if s == nil || s.sqlDB == nil {
		return roster.Edge{}, fmt.Errorf("storage is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	contactID = strings.TrimSpace(contactID)
	if ownerID == "" {
		return roster.Edge{}, fmt.Errorf("owner id is required")
	}
	if contactID == "" {
		return roster.Edge{}, fmt.Errorf("contact id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT owner_id, contact_id, display_name, group_label, subscribed, persistent, created_at, updated_at
		 FROM roster_edges
		 WHERE owner_id = ? AND contact_id = ?`,
		ownerID,
		contactID,
	)
	return scanEdge(row)
}

// ListContacts returns every edge owned by ownerID ordered by contact id.
func (s *Store) ListContacts(ctx context.Context, ownerID string) ([]roster.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT owner_id, contact_id, display_name, group_label, subscribed, persistent, created_at, updated_at
		 FROM roster_edges
		 WHERE owner_id = ?
		 ORDER BY contact_id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var edges []roster.Edge
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("list contacts: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return edges, nil
}

// ListOwnersWithContact returns every owner whose roster lists contactID.
func (s *Store) ListOwnersWithContact(ctx context.Context, contactID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return nil, fmt.Errorf("contact id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT owner_id
		 FROM roster_edges
		 WHERE contact_id = ?
		 ORDER BY owner_id ASC`,
		contactID,
	)
	if err != nil {
		return nil, fmt.Errorf("list owners with contact: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var ownerID string
		if err := rows.Scan(&ownerID); err != nil {
			return nil, fmt.Errorf("list owners with contact: %w", err)
		}
		owners = append(owners, ownerID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list owners with contact: %w", err)
	}
	return owners, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEdge(row rowScanner) (roster.Edge, error) {
	var (
		edge       roster.Edge
		subscribed int
		persistent int
		createdAt  int64
		updatedAt  int64
	)
	err := row.Scan(
		&edge.OwnerID,
		&edge.ContactID,
		&edge.DisplayName,
		&edge.GroupLabel,
		&subscribed,
		&persistent,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return roster.Edge{}, roster.ErrNotFound
		}
		return roster.Edge{}, fmt.Errorf("get roster edge: %w", err)
	}
	edge.Subscribed = subscribed != 0
	edge.Persistent = persistent != 0
	edge.CreatedAt = fromMillis(createdAt)
	edge.UpdatedAt = fromMillis(updatedAt)
	return edge, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

var _ roster.Store = (*Store)(nil)
