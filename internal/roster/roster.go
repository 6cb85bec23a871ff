// Package roster owns the directed contact graph and its reconciliation
// against the identity directory.
package roster

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested roster edge is missing.
	ErrNotFound = errors.New("roster edge not found")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("roster store is not configured")
	// ErrRequesterIDRequired indicates a requester identity is required.
	ErrRequesterIDRequired = errors.New("requester id is required")
	// ErrContactNumbersRequired indicates at least one raw number is required.
	ErrContactNumbersRequired = errors.New("contact numbers are required")
)

// Edge is one directed contact relation. DisplayName captures the contact's
// name at the time the edge was created and is never rewritten afterwards.
type Edge struct {
	OwnerID     string
	ContactID   string
	DisplayName string
	GroupLabel  string
	Subscribed  bool
	Persistent  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is the persistence boundary for the contact graph.
type Store interface {
	// GetEdge returns the directed edge (ownerID -> contactID).
	GetEdge(ctx context.Context, ownerID string, contactID string) (Edge, error)
	// PutEdge creates the directed edge if absent. An existing edge for the
	// same (owner, contact) pair is left untouched.
	PutEdge(ctx context.Context, edge Edge) error
	// ListContacts returns every edge owned by ownerID.
	ListContacts(ctx context.Context, ownerID string) ([]Edge, error)
	// ListOwnersWithContact returns every owner whose roster lists contactID.
	ListOwnersWithContact(ctx context.Context, contactID string) ([]string, error)
}
