// Package room owns persisted chat-room membership and the live occupancy
// snapshot used to pick absent recipients for a message event.
package room

import (
	"context"
	"errors"
)

var (
	// ErrRoomIDRequired indicates a room id is required.
	ErrRoomIDRequired = errors.New("room id is required")
	// ErrMemberIDRequired indicates a member identity id is required.
	ErrMemberIDRequired = errors.New("member id is required")
)

// MemberStore is the persistence boundary for room membership. Membership
// records everyone ever added to a room and is distinct from occupancy,
// which only tracks who is connected right now.
type MemberStore interface {
	// AddMember records identityID as a member of roomID. Replays are no-ops.
	AddMember(ctx context.Context, roomID string, identityID string) error
	// RemoveMember drops identityID from roomID's membership.
	RemoveMember(ctx context.Context, roomID string, identityID string) error
	// ListMembers returns the persisted membership of roomID.
	ListMembers(ctx context.Context, roomID string) ([]string, error)
}

// AbsentRecipients returns the members missing from the live occupant set,
// excluding the sender. Inputs are snapshots taken at call time; the result
// must be recomputed for every message event because occupancy changes
// between events.
func AbsentRecipients(members []string, occupants []string, senderID string) []string {
	if len(members) == 0 {
		return nil
	}
	present := make(map[string]struct{}, len(occupants)+1)
	for _, id := range occupants {
		present[id] = struct{}{}
	}
	present[senderID] = struct{}{}

	seen := make(map[string]struct{}, len(members))
	var absent []string
	for _, id := range members {
		if id == "" {
			continue
		}
		if _, ok := present[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		absent = append(absent, id)
	}
	return absent
}
