// Package notify implements the presence-aware push notification core:
// request composition, per-request token resolution, and event fanout.
package notify

// Kind identifies the type of notification being sent.
type Kind string

const (
	// KindOfflineSingle notifies the recipient of an offline one-to-one message.
	KindOfflineSingle Kind = "offline-single"
	// KindOfflineMUC notifies an absent room member of a group-chat message.
	KindOfflineMUC Kind = "offline-muc"
	// KindVcardUpdated notifies a contact that the subject's profile changed.
	KindVcardUpdated Kind = "update-vcard"
	// KindAvatarUpdated notifies a recipient that an avatar changed.
	KindAvatarUpdated Kind = "update-avatar"
)

// Property keys carried in notification payloads.
const (
	// PropCustomToken is a one-time sign-in token minted for the recipient.
	PropCustomToken = "customToken"
	// PropRoomJID addresses the room a group-chat message belongs to.
	PropRoomJID = "roomJID"
	// PropContactJID addresses the contact whose profile changed.
	PropContactJID = "contactJID"
	// PropAvatarURL locates the updated avatar image.
	PropAvatarURL = "avatar-url"
)

// Valid reports whether k is one of the supported notification kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindOfflineSingle, KindOfflineMUC, KindVcardUpdated, KindAvatarUpdated:
		return true
	}
	return false
}

// requiredProperties returns the property keys a request of kind k must
// carry before it can enter a pipeline.
func (k Kind) requiredProperties() []string {
	switch k {
	case KindOfflineSingle:
		return []string{PropCustomToken}
	case KindOfflineMUC:
		return []string{PropCustomToken, PropRoomJID}
	case KindVcardUpdated:
		return []string{PropCustomToken, PropContactJID}
	case KindAvatarUpdated:
		return []string{PropAvatarURL}
	}
	return nil
}
