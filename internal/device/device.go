// Package device owns push device-token registrations.
package device

import (
	"context"
	"errors"
)

var (
	// ErrRecipientIDRequired indicates a recipient identity id is required.
	ErrRecipientIDRequired = errors.New("recipient id is required")
	// ErrDeviceTokenRequired indicates a device token is required.
	ErrDeviceTokenRequired = errors.New("device token is required")
)

// TokenStore is the persistence boundary for device push tokens. A recipient
// without a registered token is a valid state: Lookup returns an empty token
// and no error.
type TokenStore interface {
	// PutToken records recipientID's current device token, replacing any
	// previous one.
	PutToken(ctx context.Context, recipientID string, token string) error
	// Lookup returns recipientID's current device token, or "" when the
	// recipient has none registered.
	Lookup(ctx context.Context, recipientID string) (string, error)
	// DeleteToken drops recipientID's registration.
	DeleteToken(ctx context.Context, recipientID string) error
}
