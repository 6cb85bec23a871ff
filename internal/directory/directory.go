// Package directory defines the identity records owned by the identity
// provider and the lookup contracts the rest of the service consumes.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound indicates a requested identity record is missing.
var ErrNotFound = errors.New("identity not found")

// Identity is one directory user record. It is created by registration and
// read-only everywhere else.
type Identity struct {
	ID          string
	DisplayName string
	Email       string
	PhoneKey    string
}

// LookupResult partitions a batch phone-key lookup into matched identities
// and the keys that resolved to nobody.
type LookupResult struct {
	Matched  []Identity
	NotFound []string
}

// Directory resolves identities for contact reconciliation and fanout.
type Directory interface {
	// LookupByPhoneKeys resolves canonical phone keys in one batch.
	LookupByPhoneKeys(ctx context.Context, keys []string) (LookupResult, error)
	// GetIdentity returns one identity by id.
	GetIdentity(ctx context.Context, identityID string) (Identity, error)
}

// Store extends Directory with the writes registration performs.
type Store interface {
	Directory
	PutIdentity(ctx context.Context, identity Identity) error
}
