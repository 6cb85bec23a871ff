package notify

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	apperrors "github.com/tapinapp/beacon/internal/platform/errors"
)

// Request is one composed notification for one recipient. It is immutable
// once composed and exclusively owned by the single pipeline instance that
// carries it; requests are never shared across recipients or reused across
// fanout invocations.
type Request struct {
	id          string
	kind        Kind
	recipientID string
	properties  map[string]string
}

// Compose validates and builds a notification request. Construction is pure;
// a missing required property is rejected here, before any I/O happens.
func Compose(kind Kind, recipientID string, properties map[string]string) (Request, error) {
	if !kind.Valid() {
		return Request{}, apperrors.New(
			apperrors.CodeNotificationKindInvalid,
			fmt.Sprintf("unknown notification kind %q", string(kind)),
		)
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return Request{}, apperrors.New(
			apperrors.CodeNotificationRecipientEmpty,
			"notification recipient is required",
		)
	}
	for _, key := range kind.requiredProperties() {
		if strings.TrimSpace(properties[key]) == "" {
			return Request{}, apperrors.WithMetadata(
				apperrors.CodeNotificationPropertyMissing,
				fmt.Sprintf("notification kind %q requires property %q", string(kind), key),
				map[string]string{"Property": key},
			)
		}
	}

	props := make(map[string]string, len(properties))
	for key, value := range properties {
		props[key] = value
	}
	return Request{
		id:          uuid.NewString(),
		kind:        kind,
		recipientID: recipientID,
		properties:  props,
	}, nil
}

// ID returns the unique request identifier used for correlation and logging.
func (r Request) ID() string { return r.id }

// Kind returns the notification kind.
func (r Request) Kind() Kind { return r.kind }

// RecipientID returns the target identity id.
func (r Request) RecipientID() string { return r.recipientID }

// Properties returns a copy of the request's payload properties.
func (r Request) Properties() map[string]string {
	out := make(map[string]string, len(r.properties))
	for key, value := range r.properties {
		out[key] = value
	}
	return out
}
