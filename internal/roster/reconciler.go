package roster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tapinapp/beacon/internal/directory"
	"github.com/tapinapp/beacon/internal/phone"
	apperrors "github.com/tapinapp/beacon/internal/platform/errors"
)

// Reconciler completes bidirectional contact edges between a requester and
// the directory identities matched from their phone contacts.
type Reconciler struct {
	store     Store
	directory directory.Directory
	clock     func() time.Time
}

// SyncReport summarizes one contact-sync pass.
type SyncReport struct {
	MatchedCount int
	NotFound     []string
}

// NewReconciler constructs roster reconciliation use-cases.
func NewReconciler(store Store, dir directory.Directory, clock func() time.Time) *Reconciler {
	if clock == nil {
		clock = time.Now
	}
	return &Reconciler{
		store:     store,
		directory: dir,
		clock:     clock,
	}
}

// SyncContacts normalizes the requester's raw phone numbers, resolves them
// against the directory in one batch, and reconciles roster edges for every
// match. Unmatched keys are reported, not treated as errors.
func (r *Reconciler) SyncContacts(ctx context.Context, requesterID string, rawNumbers []string) (SyncReport, error) {
	if r == nil || r.store == nil {
		return SyncReport{}, ErrStoreNotConfigured
	}
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return SyncReport{}, ErrRequesterIDRequired
	}
	keys := phone.NormalizeKeys(rawNumbers)
	if len(keys) == 0 {
		return SyncReport{}, ErrContactNumbersRequired
	}

	result, err := r.directory.LookupByPhoneKeys(ctx, keys)
	if err != nil {
		return SyncReport{}, apperrors.Wrap(apperrors.CodeDirectoryLookupFailed, "lookup contacts by phone key", err)
	}
	for _, key := range result.NotFound {
		log.Printf("contact sync: no identity for phone key %s", key)
	}

	if err := r.Reconcile(ctx, requesterID, result.Matched); err != nil {
		return SyncReport{}, err
	}
	return SyncReport{
		MatchedCount: len(result.Matched),
		NotFound:     result.NotFound,
	}, nil
}

// Reconcile ensures both directed edges exist between the requester and each
// matched identity. The two directional checks for one contact are
// independent: a pre-existing edge in either direction is left untouched and
// only the missing direction is created. A failure on one contact is logged
// and does not abort the remaining contacts.
func (r *Reconciler) Reconcile(ctx context.Context, requesterID string, matched []directory.Identity) error {
	if r == nil || r.store == nil {
		return ErrStoreNotConfigured
	}
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return ErrRequesterIDRequired
	}
	if len(matched) == 0 {
		return nil
	}

	requester, err := r.directory.GetIdentity(ctx, requesterID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryLookupFailed, "resolve requester identity", err)
	}

	var failed []string
	for _, contact := range matched {
		contactID := strings.TrimSpace(contact.ID)
		if contactID == "" || contactID == requesterID {
			continue
		}

		forwardErr := r.ensureEdge(ctx, requesterID, contactID, contact.DisplayName)
		if forwardErr != nil {
			log.Printf("reconcile %s: create edge to %s: %v", requesterID, contactID, forwardErr)
		}
		reverseErr := r.ensureEdge(ctx, contactID, requesterID, requester.DisplayName)
		if reverseErr != nil {
			log.Printf("reconcile %s: create reverse edge from %s: %v", requesterID, contactID, reverseErr)
		}
		if forwardErr != nil || reverseErr != nil {
			failed = append(failed, contactID)
		}
	}

	if len(failed) > 0 {
		return apperrors.WithMetadata(
			apperrors.CodeReconcilePartialFailure,
			fmt.Sprintf("reconciled with %d failed contact(s)", len(failed)),
			map[string]string{"Contacts": strings.Join(failed, ",")},
		)
	}
	return nil
}

// ensureEdge creates the directed edge (ownerID -> contactID) when it does
// not already exist.
func (r *Reconciler) ensureEdge(ctx context.Context, ownerID string, contactID string, displayName string) error {
	_, err := r.store.GetEdge(ctx, ownerID, contactID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	now := r.clock().UTC()
	return r.store.PutEdge(ctx, Edge{
		OwnerID:     ownerID,
		ContactID:   contactID,
		DisplayName: strings.TrimSpace(displayName),
		Subscribed:  true,
		Persistent:  true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}
