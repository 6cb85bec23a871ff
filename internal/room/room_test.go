package room

import (
	"sync"
	"testing"
)

func TestAbsentRecipients(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		members   []string
		occupants []string
		senderID  string
		want      []string
	}{
		{
			name:      "sender excluded even when absent",
			members:   []string{"u1", "u2", "u3"},
			occupants: []string{"u2"},
			senderID:  "u1",
			want:      []string{"u3"},
		},
		{
			name:      "everyone present",
			members:   []string{"u1", "u2"},
			occupants: []string{"u1", "u2"},
			senderID:  "u1",
			want:      nil,
		},
		{
			name:      "empty occupancy notifies all but sender",
			members:   []string{"u1", "u2", "u3"},
			occupants: nil,
			senderID:  "u2",
			want:      []string{"u1", "u3"},
		},
		{
			name:      "no members",
			members:   nil,
			occupants: []string{"u1"},
			senderID:  "u1",
			want:      nil,
		},
		{
			name:      "duplicate members collapse",
			members:   []string{"u3", "u3", "u2"},
			occupants: []string{"u2"},
			senderID:  "u1",
			want:      []string{"u3"},
		},
		{
			name:      "occupant not in membership is ignored",
			members:   []string{"u1", "u2"},
			occupants: []string{"u2", "u9"},
			senderID:  "u3",
			want:      []string{"u1"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := AbsentRecipients(tt.members, tt.occupants, tt.senderID)
			if len(got) != len(tt.want) {
				t.Fatalf("AbsentRecipients() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("AbsentRecipients() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestOccupancyRegistryJoinLeave(t *testing.T) {
	t.Parallel()

	reg := NewOccupancyRegistry()
	reg.Join("room1", "u1")
	reg.Join("room1", "u2")
	reg.Join("room1", "u2")
	reg.Join("room2", "u3")

	got := reg.Occupants("room1")
	if len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Errorf("Occupants(room1) = %v, want [u1 u2]", got)
	}

	reg.Leave("room1", "u1")
	got = reg.Occupants("room1")
	if len(got) != 1 || got[0] != "u2" {
		t.Errorf("Occupants(room1) after leave = %v, want [u2]", got)
	}

	reg.Leave("room2", "u3")
	if got := reg.Occupants("room2"); got != nil {
		t.Errorf("Occupants(room2) after last leave = %v, want nil", got)
	}

	reg.Leave("missing", "u1")
	if got := reg.Occupants("missing"); got != nil {
		t.Errorf("Occupants(missing) = %v, want nil", got)
	}
}

func TestOccupancyRegistrySnapshotIsDetached(t *testing.T) {
	t.Parallel()

	reg := NewOccupancyRegistry()
	reg.Join("room1", "u1")

	snapshot := reg.Occupants("room1")
	reg.Join("room1", "u2")

	if len(snapshot) != 1 {
		t.Errorf("snapshot grew after later join: %v", snapshot)
	}
}

func TestOccupancyRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()

	reg := NewOccupancyRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ids := []string{"u1", "u2", "u3", "u4"}
			for j := 0; j < 100; j++ {
				id := ids[(n+j)%len(ids)]
				reg.Join("room1", id)
				reg.Occupants("room1")
				reg.Leave("room1", id)
			}
		}(i)
	}
	wg.Wait()
}
