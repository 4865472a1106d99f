package events

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventMetadata carries identity information common to all events.
type EventMetadata struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	TurnID         string    `json:"turn_id,omitempty"`

	Extra map[string]interface{} `json:"extra,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", em.ID.String())
	if em.ConversationID != "" {
		e.Str("conversation_id", em.ConversationID)
	}
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
	if len(em.Extra) > 0 {
		e.Interface("extra", em.Extra)
	}
}
