package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tapinapp/beacon/internal/directory"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/directory.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestIdentityRoundTrip(t *testing.T) {
	store := openTestStore(t)

	identity := directory.Identity{
		ID:          "user-1",
		DisplayName: "Avery",
		Email:       "avery@example.com",
		PhoneKey:    "+15551234567",
	}
	if err := store.PutIdentity(context.Background(), identity); err != nil {
		t.Fatalf("put identity: %v", err)
	}

	got, err := store.GetIdentity(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	if !reflect.DeepEqual(got, identity) {
		t.Fatalf("identity = %+v, want %+v", got, identity)
	}
}

func TestPutIdentityUpsertsExistingRecord(t *testing.T) {
	store := openTestStore(t)

	if err := store.PutIdentity(context.Background(), directory.Identity{
		ID:          "user-1",
		DisplayName: "Avery",
		Email:       "avery@example.com",
	}); err != nil {
		t.Fatalf("put identity: %v", err)
	}
	if err := store.PutIdentity(context.Background(), directory.Identity{
		ID:          "user-1",
		DisplayName: "Avery Updated",
		Email:       "avery@example.com",
		PhoneKey:    "+15551234567",
	}); err != nil {
		t.Fatalf("re-put identity: %v", err)
	}

	got, err := store.GetIdentity(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	if got.DisplayName != "Avery Updated" {
		t.Fatalf("display name = %q, want updated value", got.DisplayName)
	}
	if got.PhoneKey != "+15551234567" {
		t.Fatalf("phone key = %q, want upserted value", got.PhoneKey)
	}
}

func TestGetIdentityNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetIdentity(context.Background(), "missing")
	if !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupByPhoneKeysPartitionsMatchedAndNotFound(t *testing.T) {
	store := openTestStore(t)

	if err := store.PutIdentity(context.Background(), directory.Identity{
		ID:          "user-1",
		DisplayName: "Avery",
		Email:       "avery@example.com",
		PhoneKey:    "+15551234567",
	}); err != nil {
		t.Fatalf("put identity: %v", err)
	}
	if err := store.PutIdentity(context.Background(), directory.Identity{
		ID:          "user-2",
		DisplayName: "Blake",
		Email:       "blake@example.com",
		PhoneKey:    "+15557654321",
	}); err != nil {
		t.Fatalf("put identity: %v", err)
	}

	result, err := store.LookupByPhoneKeys(context.Background(), []string{
		"+15551234567",
		"+15550000000",
		"+15557654321",
	})
	if err != nil {
		t.Fatalf("lookup by phone keys: %v", err)
	}
	if len(result.Matched) != 2 {
		t.Fatalf("matched = %d, want 2", len(result.Matched))
	}
	if result.Matched[0].ID != "user-1" || result.Matched[1].ID != "user-2" {
		t.Fatalf("unexpected matched identities: %+v", result.Matched)
	}
	if !reflect.DeepEqual(result.NotFound, []string{"+15550000000"}) {
		t.Fatalf("not found = %v, want unmatched key only", result.NotFound)
	}
}

func TestLookupByPhoneKeysDeduplicatesInput(t *testing.T) {
	store := openTestStore(t)

	if err := store.PutIdentity(context.Background(), directory.Identity{
		ID:       "user-1",
		Email:    "avery@example.com",
		PhoneKey: "+15551234567",
	}); err != nil {
		t.Fatalf("put identity: %v", err)
	}

	result, err := store.LookupByPhoneKeys(context.Background(), []string{
		"+15551234567",
		"+15551234567",
		"  ",
	})
	if err != nil {
		t.Fatalf("lookup by phone keys: %v", err)
	}
	if len(result.Matched) != 1 {
		t.Fatalf("matched = %d, want 1", len(result.Matched))
	}
	if len(result.NotFound) != 0 {
		t.Fatalf("not found = %v, want empty", result.NotFound)
	}
}

func TestLookupByPhoneKeysEmptyBatch(t *testing.T) {
	store := openTestStore(t)

	result, err := store.LookupByPhoneKeys(context.Background(), nil)
	if err != nil {
		t.Fatalf("lookup with empty batch: %v", err)
	}
	if len(result.Matched) != 0 || len(result.NotFound) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
