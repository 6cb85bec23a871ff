package notify

import (
	"testing"

	apperrors "github.com/tapinapp/beacon/internal/platform/errors"
)

func TestComposeValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		kind        Kind
		recipientID string
		properties  map[string]string
		wantCode    apperrors.Code
	}{
		{
			name:        "offline single with custom token",
			kind:        KindOfflineSingle,
			recipientID: "alice",
			properties:  map[string]string{PropCustomToken: "tok"},
		},
		{
			name:        "offline single missing custom token",
			kind:        KindOfflineSingle,
			recipientID: "alice",
			properties:  map[string]string{},
			wantCode:    apperrors.CodeNotificationPropertyMissing,
		},
		{
			name:        "offline muc requires room jid",
			kind:        KindOfflineMUC,
			recipientID: "alice",
			properties:  map[string]string{PropCustomToken: "tok"},
			wantCode:    apperrors.CodeNotificationPropertyMissing,
		},
		{
			name:        "offline muc complete",
			kind:        KindOfflineMUC,
			recipientID: "alice",
			properties:  map[string]string{PropCustomToken: "tok", PropRoomJID: "room@muc.example.com"},
		},
		{
			name:        "vcard requires contact jid",
			kind:        KindVcardUpdated,
			recipientID: "alice",
			properties:  map[string]string{PropCustomToken: "tok"},
			wantCode:    apperrors.CodeNotificationPropertyMissing,
		},
		{
			name:        "avatar requires url and no custom token",
			kind:        KindAvatarUpdated,
			recipientID: "alice",
			properties:  map[string]string{PropAvatarURL: "https://example.com/a.png"},
		},
		{
			name:        "avatar missing url",
			kind:        KindAvatarUpdated,
			recipientID: "alice",
			properties:  map[string]string{},
			wantCode:    apperrors.CodeNotificationPropertyMissing,
		},
		{
			name:        "blank required property rejected",
			kind:        KindOfflineSingle,
			recipientID: "alice",
			properties:  map[string]string{PropCustomToken: "   "},
			wantCode:    apperrors.CodeNotificationPropertyMissing,
		},
		{
			name:        "unknown kind",
			kind:        Kind("carrier-pigeon"),
			recipientID: "alice",
			wantCode:    apperrors.CodeNotificationKindInvalid,
		},
		{
			name:        "empty recipient",
			kind:        KindOfflineSingle,
			recipientID: "  ",
			properties:  map[string]string{PropCustomToken: "tok"},
			wantCode:    apperrors.CodeNotificationRecipientEmpty,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			request, err := Compose(tt.kind, tt.recipientID, tt.properties)
			if tt.wantCode != "" {
				if err == nil {
					t.Fatal("Compose() error = nil, want validation error")
				}
				if got := apperrors.CodeOf(err); got != tt.wantCode {
					t.Errorf("CodeOf(err) = %v, want %v", got, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			if request.ID() == "" {
				t.Error("Compose() produced empty request id")
			}
			if request.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", request.Kind(), tt.kind)
			}
			if request.RecipientID() != tt.recipientID {
				t.Errorf("RecipientID() = %q, want %q", request.RecipientID(), tt.recipientID)
			}
		})
	}
}

func TestComposeRequestsAreIndependent(t *testing.T) {
	t.Parallel()

	props := map[string]string{PropCustomToken: "tok"}
	first, err := Compose(KindOfflineSingle, "alice", props)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	second, err := Compose(KindOfflineSingle, "alice", props)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	if first.ID() == second.ID() {
		t.Error("two composed requests share an id")
	}

	// Mutating the input map or a returned copy must not leak into the request.
	props[PropCustomToken] = "changed"
	copied := first.Properties()
	copied[PropCustomToken] = "also changed"
	if got := first.Properties()[PropCustomToken]; got != "tok" {
		t.Errorf("request property mutated externally: %q", got)
	}
}
