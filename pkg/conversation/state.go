package conversation

import (
	"encoding/json"

	"github.com/huandu/go-clone"
)

// Node enumerates the state-machine positions a conversation can be in.
// The current node is carried in State so that re-entry after tool
// execution is an explicit transition rather than call-stack recursion.
type Node string

const (
	NodeOrchestrate      Node = "orchestrate"
	NodeExecuteTools     Node = "execute_tools"
	NodeGenerateFollowup Node = "generate_followup"
	NodeEnd              Node = "end"
)

// ContentItem is the projection of one catalog entry out of a content
// search tool result.
type ContentItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

// State is the mutable conversation state for a turn. It is created at turn
// start from prior persisted state (or empty), mutated exclusively by
// state-machine steps through Delta reducers, and returned at the terminal
// node.
type State struct {
	Messages Conversation `json:"messages"`
	Language string       `json:"language,omitempty"`

	Emergency bool `json:"emergency,omitempty"`

	ResponseMessage     string          `json:"responseMessage,omitempty"`
	ResponseMessageType MessageType     `json:"responseMessageType,omitempty"`
	ResponsePayload     json.RawMessage `json:"responsePayload,omitempty"`

	// Per-turn projections of the last accepted tool results, by category.
	ContentItems []ContentItem `json:"contentItems,omitempty"`
	ContentTopic string        `json:"contentTopic,omitempty"`
	BookingRef   string        `json:"bookingRef,omitempty"`

	FollowupQuestion string `json:"followupQuestion,omitempty"`

	// LastError describes the last non-fatal failure; it never aborts the turn.
	LastError string `json:"lastError,omitempty"`

	Node Node `json:"node,omitempty"`
}

func NewState() *State {
	return &State{Node: NodeOrchestrate}
}

// Clone returns a deep copy of the state suitable for handing to a step
// without exposing the live state to mutation.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	return clone.Clone(s).(*State)
}

// Delta is a partial state update returned by a single state-machine step.
// Nil fields leave the current value untouched; AppendMessages is always
// additive. This keeps each step's effect explicit and the merge rules
// fixed per field.
type Delta struct {
	AppendMessages []*Message

	Language  *string
	Emergency *bool

	ResponseMessage     *string
	ResponseMessageType *MessageType
	ResponsePayload     *json.RawMessage

	ContentItems *[]ContentItem
	ContentTopic *string
	BookingRef   *string

	FollowupQuestion *string
	LastError        *string

	Node *Node
}

// Apply merges the delta into the state: append for messages, replace for
// scalars. This is the only way steps mutate conversation state.
func (s *State) Apply(d Delta) {
	for _, m := range d.AppendMessages {
		if m != nil {
			s.Messages = append(s.Messages, m)
		}
	}
	if d.Language != nil {
		s.Language = *d.Language
	}
	if d.Emergency != nil {
		s.Emergency = *d.Emergency
	}
	if d.ResponseMessage != nil {
		s.ResponseMessage = *d.ResponseMessage
	}
	if d.ResponseMessageType != nil {
		s.ResponseMessageType = *d.ResponseMessageType
	}
	if d.ResponsePayload != nil {
		s.ResponsePayload = *d.ResponsePayload
	}
	if d.ContentItems != nil {
		s.ContentItems = *d.ContentItems
	}
	if d.ContentTopic != nil {
		s.ContentTopic = *d.ContentTopic
	}
	if d.BookingRef != nil {
		s.BookingRef = *d.BookingRef
	}
	if d.FollowupQuestion != nil {
		s.FollowupQuestion = *d.FollowupQuestion
	}
	if d.LastError != nil {
		s.LastError = *d.LastError
	}
	if d.Node != nil {
		s.Node = *d.Node
	}
}

// Ptr is a small helper for building deltas out of literals.
func Ptr[T any](v T) *T {
	return &v
}
