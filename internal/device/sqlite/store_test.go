package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tapinapp/beacon/internal/device"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tokens.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func TestPutTokenAndLookup(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutToken(ctx, "alice", "token-1"); err != nil {
		t.Fatalf("PutToken() error = %v", err)
	}

	token, err := store.Lookup(ctx, "alice")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if token != "token-1" {
		t.Errorf("Lookup() = %q, want %q", token, "token-1")
	}
}

func TestPutTokenReplacesPrevious(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutToken(ctx, "alice", "token-1"); err != nil {
		t.Fatalf("PutToken() error = %v", err)
	}
	if err := store.PutToken(ctx, "alice", "token-2"); err != nil {
		t.Fatalf("PutToken() replace error = %v", err)
	}

	token, err := store.Lookup(ctx, "alice")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if token != "token-2" {
		t.Errorf("Lookup() = %q, want %q", token, "token-2")
	}
}

func TestLookupAbsentIsNotAnError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	token, err := store.Lookup(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if token != "" {
		t.Errorf("Lookup() = %q, want empty", token)
	}
}

func TestDeleteToken(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutToken(ctx, "alice", "token-1"); err != nil {
		t.Fatalf("PutToken() error = %v", err)
	}
	if err := store.DeleteToken(ctx, "alice"); err != nil {
		t.Fatalf("DeleteToken() error = %v", err)
	}
	if err := store.DeleteToken(ctx, "alice"); err != nil {
		t.Fatalf("DeleteToken() replay error = %v", err)
	}

	token, err := store.Lookup(ctx, "alice")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if token != "" {
		t.Errorf("Lookup() after delete = %q, want empty", token)
	}
}

func TestValidatesInput(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutToken(ctx, "  ", "token"); !errors.Is(err, device.ErrRecipientIDRequired) {
		t.Errorf("PutToken() error = %v, want %v", err, device.ErrRecipientIDRequired)
	}
	if err := store.PutToken(ctx, "alice", " "); !errors.Is(err, device.ErrDeviceTokenRequired) {
		t.Errorf("PutToken() error = %v, want %v", err, device.ErrDeviceTokenRequired)
	}
	if _, err := store.Lookup(ctx, ""); !errors.Is(err, device.ErrRecipientIDRequired) {
		t.Errorf("Lookup() error = %v, want %v", err, device.ErrRecipientIDRequired)
	}
	if err := store.DeleteToken(ctx, ""); !errors.Is(err, device.ErrRecipientIDRequired) {
		t.Errorf("DeleteToken() error = %v, want %v", err, device.ErrRecipientIDRequired)
	}
}
