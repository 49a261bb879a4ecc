package chat

import (
	"fmt"

	"github.com/hackhub-io/hackchat/internal/errs"
)

type ScopeKind string

const (
	ScopeEvent     ScopeKind = "event"
	ScopeCommunity ScopeKind = "community"
)

const (
	eventMessagesTable     = "event_messages"
	communityMessagesTable = "community_messages"
	typingIndicatorsTable  = "typing_indicators"
)

// Scope identifies a conversation surface: a specific event's chat or the
// global community chat.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	// EventId is the event's external id, required for event scopes.
	EventId string `json:"event_id,omitempty"`
}

func CommunityScope() Scope {
	return Scope{Kind: ScopeCommunity}
}

func EventScope(externalId string) Scope {
	return Scope{Kind: ScopeEvent, EventId: externalId}
}

func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeCommunity:
		return nil
	case ScopeEvent:
		if s.EventId == "" {
			return fmt.Errorf("%w: event scope requires an event id", errs.ErrValidation)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown scope kind %q", errs.ErrValidation, s.Kind)
	}
}

// Channel is the scope's occupancy key.
func (s Scope) Channel() string {
	if s.Kind == ScopeEvent {
		return "event:" + s.EventId
	}
	return "community"
}

func (s Scope) table() string {
	if s.Kind == ScopeEvent {
		return eventMessagesTable
	}
	return communityMessagesTable
}
