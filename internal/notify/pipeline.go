package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "github.com/tapinapp/beacon/internal/platform/errors"
)

// State is the lifecycle position of one request inside its pipeline.
type State string

const (
	// StateComposed is the initial state of a validated request.
	StateComposed State = "composed"
	// StateAwaitingDeviceToken means the one-shot token lookup is in flight.
	StateAwaitingDeviceToken State = "awaiting-device-token"
	// StateResolved means a non-empty device token arrived.
	StateResolved State = "resolved"
	// StateUnresolved means the store answered with no token for the recipient.
	StateUnresolved State = "unresolved"
	// StateDispatched means the push provider accepted the notification.
	StateDispatched State = "dispatched"
	// StateDropped is terminal for unresolved, timed-out, or failed requests.
	StateDropped State = "dropped"
)

// DefaultLookupTimeout bounds how long a pipeline waits for the token store.
// An unanswered lookup is treated as unresolved rather than left in flight.
const DefaultLookupTimeout = 10 * time.Second

// TokenSource answers device-token lookups. An empty token with a nil error
// means the recipient has no registered device, a valid terminal outcome.
type TokenSource interface {
	Lookup(ctx context.Context, recipientID string) (string, error)
}

// ProviderResult reports what the push provider said about one dispatch.
type ProviderResult struct {
	MessageID string
	Detail    string
}

// Dispatcher delivers a fully resolved notification through the push
// provider. Failures are terminal for the request; there is no retry.
type Dispatcher interface {
	Send(ctx context.Context, deviceToken string, kind Kind, properties map[string]string) (ProviderResult, error)
}

// Outcome is the terminal record of one request's trip through a pipeline.
// State holds the terminal state; Path records every state the request
// passed through, in order.
type Outcome struct {
	RequestID   string
	RecipientID string
	State       State
	Path        []State
	Provider    ProviderResult
	Err         error
}

func (o *Outcome) transition(next State) {
	o.State = next
	o.Path = append(o.Path, next)
}

// Pipeline resolves device tokens and dispatches composed requests. Each
// Resolve call owns its request end to end; concurrent calls never share
// state, so one recipient's token can never reach another's request.
type Pipeline struct {
	tokens     TokenSource
	dispatcher Dispatcher
	timeout    time.Duration
	clock      func() time.Time
}

// NewPipeline constructs a pipeline. A non-positive timeout falls back to
// DefaultLookupTimeout.
func NewPipeline(tokens TokenSource, dispatcher Dispatcher, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Pipeline{
		tokens:     tokens,
		dispatcher: dispatcher,
		timeout:    timeout,
		clock:      time.Now,
	}
}

type lookupReply struct {
	requestID string
	token     string
	err       error
}

// Resolve drives request through the full state machine and returns its
// terminal outcome. The token lookup runs on its own goroutine and answers
// through a channel owned by this call; a late reply after timeout is
// discarded, never redelivered to another request.
func (p *Pipeline) Resolve(ctx context.Context, request Request) Outcome {
	outcome := Outcome{
		RequestID:   request.ID(),
		RecipientID: request.RecipientID(),
	}
	outcome.transition(StateComposed)
	if p == nil || p.tokens == nil || p.dispatcher == nil {
		outcome.transition(StateDropped)
		outcome.Err = fmt.Errorf("pipeline is not configured")
		return outcome
	}

	lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	outcome.transition(StateAwaitingDeviceToken)
	replies := make(chan lookupReply, 1)
	go func() {
		token, err := p.tokens.Lookup(lookupCtx, request.RecipientID())
		replies <- lookupReply{requestID: request.ID(), token: token, err: err}
	}()

	var reply lookupReply
	select {
	case reply = <-replies:
	case <-lookupCtx.Done():
		// An unanswered lookup is treated as unresolved.
		outcome.transition(StateUnresolved)
		outcome.transition(StateDropped)
		outcome.Err = apperrors.Wrap(
			apperrors.CodeDeviceTokenLookupFailed,
			fmt.Sprintf("token lookup for recipient %s did not answer", request.RecipientID()),
			lookupCtx.Err(),
		)
		log.Printf("notify %s: %v", request.ID(), outcome.Err)
		return outcome
	}

	if reply.err != nil {
		outcome.transition(StateDropped)
		outcome.Err = apperrors.Wrap(
			apperrors.CodeDeviceTokenLookupFailed,
			fmt.Sprintf("token lookup for recipient %s failed", request.RecipientID()),
			reply.err,
		)
		log.Printf("notify %s: %v", request.ID(), outcome.Err)
		return outcome
	}
	if strings.TrimSpace(reply.token) == "" {
		outcome.transition(StateUnresolved)
		outcome.transition(StateDropped)
		log.Printf("notify %s: no device token for recipient %s, dropped", request.ID(), request.RecipientID())
		return outcome
	}

	outcome.transition(StateResolved)
	result, err := p.dispatcher.Send(ctx, reply.token, request.Kind(), p.dispatchProperties(request))
	if err != nil {
		outcome.transition(StateDropped)
		outcome.Err = apperrors.Wrap(
			apperrors.CodeDispatchFailed,
			fmt.Sprintf("dispatch for recipient %s failed", request.RecipientID()),
			err,
		)
		log.Printf("notify %s: %v", request.ID(), outcome.Err)
		return outcome
	}

	outcome.transition(StateDispatched)
	outcome.Provider = result
	log.Printf("notify %s: dispatched %s to recipient %s (provider message %s)",
		request.ID(), request.Kind(), request.RecipientID(), result.MessageID)
	return outcome
}

// dispatchProperties merges the dispatch-time fields into the request's
// properties. The request's own values win on key collision.
func (p *Pipeline) dispatchProperties(request Request) map[string]string {
	props := map[string]string{
		"kind":      string(request.Kind()),
		"timestamp": p.clock().UTC().Format(time.RFC3339),
	}
	for key, value := range request.Properties() {
		props[key] = value
	}
	return props
}
