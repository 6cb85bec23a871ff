package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tapinapp/beacon/internal/room"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "rooms.db"))
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

func TestAddMemberIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := store.AddMember(ctx, "room1", "u1"); err != nil {
			t.Fatalf("AddMember() pass %d error = %v", i+1, err)
		}
	}
	if err := store.AddMember(ctx, "room1", "u2"); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	members, err := store.ListMembers(ctx, "room1")
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 2 || members[0] != "u1" || members[1] != "u2" {
		t.Errorf("ListMembers() = %v, want [u1 u2]", members)
	}
}

func TestRemoveMember(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddMember(ctx, "room1", "u1"); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := store.RemoveMember(ctx, "room1", "u1"); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if err := store.RemoveMember(ctx, "room1", "u1"); err != nil {
		t.Fatalf("RemoveMember() replay error = %v", err)
	}

	members, err := store.ListMembers(ctx, "room1")
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 0 {
		t.Errorf("ListMembers() = %v, want empty", members)
	}
}

func TestMembershipIsPerRoom(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddMember(ctx, "room1", "u1"); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := store.AddMember(ctx, "room2", "u2"); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	members, err := store.ListMembers(ctx, "room2")
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 1 || members[0] != "u2" {
		t.Errorf("ListMembers(room2) = %v, want [u2]", members)
	}
}

func TestValidatesInput(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddMember(ctx, "  ", "u1"); !errors.Is(err, room.ErrRoomIDRequired) {
		t.Errorf("AddMember() error = %v, want %v", err, room.ErrRoomIDRequired)
	}
	if err := store.AddMember(ctx, "room1", ""); !errors.Is(err, room.ErrMemberIDRequired) {
		t.Errorf("AddMember() error = %v, want %v", err, room.ErrMemberIDRequired)
	}
	if err := store.RemoveMember(ctx, "", "u1"); !errors.Is(err, room.ErrRoomIDRequired) {
		t.Errorf("RemoveMember() error = %v, want %v", err, room.ErrRoomIDRequired)
	}
	if _, err := store.ListMembers(ctx, ""); !errors.Is(err, room.ErrRoomIDRequired) {
		t.Errorf("ListMembers() error = %v, want %v", err, room.ErrRoomIDRequired)
	}
}
