package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tapinapp/beacon/internal/directory"
	apperrors "github.com/tapinapp/beacon/internal/platform/errors"
	"github.com/tapinapp/beacon/internal/room"
)

// EventKind identifies one of the triggers the engine fans out for. The set
// is closed: triggers the system never fires have no representation here.
type EventKind string

const (
	// EventOfflineMessage fires when a one-to-one message is stored offline.
	EventOfflineMessage EventKind = "offline-message"
	// EventMucMessage fires when a group-chat room receives a message.
	EventMucMessage EventKind = "muc-message"
	// EventProfileChanged fires when an identity's profile (vcard) changes.
	EventProfileChanged EventKind = "profile-changed"
	// EventAvatarChanged fires when an identity's or a room's avatar changes.
	EventAvatarChanged EventKind = "avatar-changed"
)

// Event is one fanout trigger. Which fields are read depends on Kind.
type Event struct {
	Kind EventKind

	// SenderID is the message author for message events.
	SenderID string
	// RecipientID is the destination identity for offline one-to-one messages.
	RecipientID string
	// RoomID identifies the room for group-chat and room-avatar events.
	RoomID string
	// RoomJID is the room address carried in group-chat payloads.
	RoomJID string
	// SubjectID is the identity whose profile or avatar changed.
	SubjectID string
	// SubjectJID is the subject's address carried in profile payloads.
	SubjectJID string
	// AvatarURL locates the updated avatar for avatar events.
	AvatarURL string
	// RoomAvatar marks an avatar event as belonging to a room instead of an
	// individual.
	RoomAvatar bool
}

// RosterReader is the roster access the engine needs to find everyone whose
// contact list points at a subject.
type RosterReader interface {
	ListOwnersWithContact(ctx context.Context, contactID string) ([]string, error)
}

// OccupancySource answers who is connected to a room right now.
type OccupancySource interface {
	Occupants(roomID string) []string
}

// CustomTokenIssuer mints one-time sign-in tokens for recipients.
type CustomTokenIssuer interface {
	IssueCustomToken(ctx context.Context, identityID string, email string) (string, error)
}

// Engine turns chat events into per-recipient notification pipelines. Every
// recipient gets its own composed request and its own pipeline run; nothing
// is shared between recipients or between trigger invocations.
type Engine struct {
	pipeline  *Pipeline
	roster    RosterReader
	members   room.MemberStore
	occupancy OccupancySource
	directory directory.Directory
	issuer    CustomTokenIssuer

	handlers map[EventKind]func(ctx context.Context, event Event) error

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// EngineDeps carries the collaborators an Engine needs.
type EngineDeps struct {
	Pipeline  *Pipeline
	Roster    RosterReader
	Members   room.MemberStore
	Occupancy OccupancySource
	Directory directory.Directory
	Issuer    CustomTokenIssuer
}

// NewEngine constructs a fanout engine.
func NewEngine(deps EngineDeps) *Engine {
	e := &Engine{
		pipeline:  deps.Pipeline,
		roster:    deps.Roster,
		members:   deps.Members,
		occupancy: deps.Occupancy,
		directory: deps.Directory,
		issuer:    deps.Issuer,
	}
	e.handlers = map[EventKind]func(ctx context.Context, event Event) error{
		EventOfflineMessage: e.handleOfflineMessage,
		EventMucMessage:     e.handleMucMessage,
		EventProfileChanged: e.handleProfileChanged,
		EventAvatarChanged:  e.handleAvatarChanged,
	}
	return e
}

// Dispatch routes an event to its handler. Recipient selection runs on the
// caller's goroutine; pipeline runs are spawned and do not block the caller.
func (e *Engine) Dispatch(ctx context.Context, event Event) error {
	if e == nil || e.pipeline == nil {
		return fmt.Errorf("engine is not configured")
	}
	handler, ok := e.handlers[event.Kind]
	if !ok {
		return apperrors.New(
			apperrors.CodeNotificationKindInvalid,
			fmt.Sprintf("unknown event kind %q", string(event.Kind)),
		)
	}

	ctx, span := otel.Tracer("notify").Start(ctx, "engine.dispatch",
		trace.WithAttributes(attribute.String("event.kind", string(event.Kind))))
	defer span.End()

	return handler(ctx, event)
}

// OnOfflineMessageStored fans out for a one-to-one message stored while its
// recipient was offline.
func (e *Engine) OnOfflineMessageStored(ctx context.Context, senderID string, recipientID string) error {
	return e.Dispatch(ctx, Event{
		Kind:        EventOfflineMessage,
		SenderID:    senderID,
		RecipientID: recipientID,
	})
}

// OnMucMessageReceived fans out for a group-chat message, notifying every
// persisted member absent from the room's live occupancy.
func (e *Engine) OnMucMessageReceived(ctx context.Context, roomID string, roomJID string, senderID string) error {
	return e.Dispatch(ctx, Event{
		Kind:     EventMucMessage,
		RoomID:   roomID,
		RoomJID:  roomJID,
		SenderID: senderID,
	})
}

// OnProfileChanged fans out a profile update to everyone whose roster lists
// the subject as a contact.
func (e *Engine) OnProfileChanged(ctx context.Context, subjectID string, subjectJID string) error {
	return e.Dispatch(ctx, Event{
		Kind:       EventProfileChanged,
		SubjectID:  subjectID,
		SubjectJID: subjectJID,
	})
}

// OnAvatarChanged fans out an avatar update. For an individual the audience
// is everyone whose roster lists the subject; for a room it is the full
// persisted membership regardless of occupancy.
func (e *Engine) OnAvatarChanged(ctx context.Context, subjectID string, avatarURL string, roomAvatar bool) error {
	event := Event{
		Kind:       EventAvatarChanged,
		AvatarURL:  avatarURL,
		RoomAvatar: roomAvatar,
	}
	if roomAvatar {
		event.RoomID = subjectID
	} else {
		event.SubjectID = subjectID
	}
	return e.Dispatch(ctx, event)
}

// Close waits for every in-flight pipeline run to reach a terminal state.
// New dispatches are rejected once closing starts.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Engine) handleOfflineMessage(ctx context.Context, event Event) error {
	recipientID := strings.TrimSpace(event.RecipientID)
	if recipientID == "" {
		return apperrors.New(apperrors.CodeNotificationRecipientEmpty, "offline message recipient is required")
	}
	e.fanout(ctx, KindOfflineSingle, []string{recipientID}, nil)
	return nil
}

func (e *Engine) handleMucMessage(ctx context.Context, event Event) error {
	roomID := strings.TrimSpace(event.RoomID)
	if roomID == "" {
		return apperrors.New(apperrors.CodeRoomIDEmpty, "room id is required")
	}
	if e.members == nil {
		return fmt.Errorf("room member store is not configured")
	}

	members, err := e.members.ListMembers(ctx, roomID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryLookupFailed, "list room members", err)
	}
	var occupants []string
	if e.occupancy != nil {
		occupants = e.occupancy.Occupants(roomID)
	}
	recipients := room.AbsentRecipients(members, occupants, event.SenderID)

	e.fanout(ctx, KindOfflineMUC, recipients, map[string]string{PropRoomJID: event.RoomJID})
	return nil
}

func (e *Engine) handleProfileChanged(ctx context.Context, event Event) error {
	recipients, err := e.reverseRosterAudience(ctx, event.SubjectID)
	if err != nil {
		return err
	}
	e.fanout(ctx, KindVcardUpdated, recipients, map[string]string{PropContactJID: event.SubjectJID})
	return nil
}

func (e *Engine) handleAvatarChanged(ctx context.Context, event Event) error {
	props := map[string]string{PropAvatarURL: event.AvatarURL}

	if event.RoomAvatar {
		roomID := strings.TrimSpace(event.RoomID)
		if roomID == "" {
			return apperrors.New(apperrors.CodeRoomIDEmpty, "room id is required")
		}
		if e.members == nil {
			return fmt.Errorf("room member store is not configured")
		}
		members, err := e.members.ListMembers(ctx, roomID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeDirectoryLookupFailed, "list room members", err)
		}
		e.fanout(ctx, KindAvatarUpdated, members, props)
		return nil
	}

	recipients, err := e.reverseRosterAudience(ctx, event.SubjectID)
	if err != nil {
		return err
	}
	e.fanout(ctx, KindAvatarUpdated, recipients, props)
	return nil
}

// reverseRosterAudience returns everyone whose roster lists subjectID.
func (e *Engine) reverseRosterAudience(ctx context.Context, subjectID string) ([]string, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, apperrors.New(apperrors.CodeNotificationRecipientEmpty, "subject identity is required")
	}
	if e.roster == nil {
		return nil, fmt.Errorf("roster reader is not configured")
	}
	owners, err := e.roster.ListOwnersWithContact(ctx, subjectID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDirectoryLookupFailed, "list roster owners", err)
	}
	return owners, nil
}

// fanout composes one request per recipient and runs each through its own
// pipeline instance on its own goroutine. A failure preparing one recipient
// is logged and never aborts the siblings.
func (e *Engine) fanout(ctx context.Context, kind Kind, recipients []string, shared map[string]string) {
	for _, recipientID := range recipients {
		recipientID = strings.TrimSpace(recipientID)
		if recipientID == "" {
			continue
		}

		props := make(map[string]string, len(shared)+1)
		for key, value := range shared {
			props[key] = value
		}
		if err := e.attachCustomToken(ctx, kind, recipientID, props); err != nil {
			log.Printf("fanout %s: recipient %s: %v", kind, recipientID, err)
			continue
		}

		request, err := Compose(kind, recipientID, props)
		if err != nil {
			log.Printf("fanout %s: recipient %s: %v", kind, recipientID, err)
			continue
		}
		e.spawn(ctx, request)
	}
}

// attachCustomToken mints the recipient's one-time sign-in token for the
// kinds that carry one. A failure isolates that recipient only.
func (e *Engine) attachCustomToken(ctx context.Context, kind Kind, recipientID string, props map[string]string) error {
	if kind == KindAvatarUpdated {
		return nil
	}
	if e.directory == nil || e.issuer == nil {
		return fmt.Errorf("custom token issuer is not configured")
	}
	identity, err := e.directory.GetIdentity(ctx, recipientID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryLookupFailed, "resolve recipient identity", err)
	}
	token, err := e.issuer.IssueCustomToken(ctx, identity.ID, identity.Email)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCustomTokenIssueFailed, "issue custom token", err)
	}
	props[PropCustomToken] = token
	return nil
}

// spawn runs one request through the pipeline on its own goroutine, tracked
// so Close can drain in-flight work. The pipeline context is detached from
// the trigger's cancellation: the HTTP handler that fired the event replies
// before the token lookup answers, and its request context being cancelled
// must not drop the in-flight pipeline. Trace values survive the detach.
func (e *Engine) spawn(ctx context.Context, request Request) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		log.Printf("notify %s: engine closed, request for recipient %s dropped", request.ID(), request.RecipientID())
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	pipelineCtx := context.WithoutCancel(ctx)
	go func() {
		defer e.wg.Done()
		e.pipeline.Resolve(pipelineCtx, request)
	}()
}
