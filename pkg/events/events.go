package events

import (
	"github.com/rs/zerolog"
)

type EventType string

const (
	// Turn lifecycle
	EventTypeTurnStarted EventType = "turn-started"
	EventTypeFinal       EventType = "final"
	EventTypeError       EventType = "error"

	// Execution-phase events (we are actually executing tools locally)
	EventTypeToolCallExecute         EventType = "tool-call-execute"
	EventTypeToolCallExecutionResult EventType = "tool-call-execution-result"

	// Safety path
	EventTypeSafetyTriggered      EventType = "safety-triggered"
	EventTypeSafetyLateDetection  EventType = "safety-late-detection"
	EventTypeSafetyClassifierFail EventType = "safety-classifier-fail"

	EventTypeFollowup EventType = "followup"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

var _ Event = &EventImpl{}

type EventTurnStarted struct {
	EventImpl
	UserText string `json:"user_text"`
}

func NewTurnStartedEvent(metadata EventMetadata, userText string) *EventTurnStarted {
	return &EventTurnStarted{
		EventImpl: EventImpl{Type_: EventTypeTurnStarted, Metadata_: metadata},
		UserText:  userText,
	}
}

type EventFinal struct {
	EventImpl
	Text        string `json:"text"`
	MessageType string `json:"message_type,omitempty"`
}

func NewFinalEvent(metadata EventMetadata, text, messageType string) *EventFinal {
	return &EventFinal{
		EventImpl:   EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Text:        text,
		MessageType: messageType,
	}
}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

type ToolResult struct {
	ID     string `json:"id"`
	Result string `json:"result"`
}

type EventToolCallExecute struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallExecuteEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCallExecute {
	return &EventToolCallExecute{
		EventImpl: EventImpl{Type_: EventTypeToolCallExecute, Metadata_: metadata},
		ToolCall:  toolCall,
	}
}

type EventToolCallExecutionResult struct {
	EventImpl
	ToolResult ToolResult `json:"tool_result"`
}

func NewToolCallExecutionResultEvent(metadata EventMetadata, toolResult ToolResult) *EventToolCallExecutionResult {
	return &EventToolCallExecutionResult{
		EventImpl:  EventImpl{Type_: EventTypeToolCallExecutionResult, Metadata_: metadata},
		ToolResult: toolResult,
	}
}

type EventSafetyTriggered struct {
	EventImpl
	// Source records which gate fired: "breaker" or "orchestrate".
	Source string `json:"source"`
}

func NewSafetyTriggeredEvent(metadata EventMetadata, source string) *EventSafetyTriggered {
	return &EventSafetyTriggered{
		EventImpl: EventImpl{Type_: EventTypeSafetyTriggered, Metadata_: metadata},
		Source:    source,
	}
}

// EventSafetyLateDetection is raised when the classifier resolves positive
// after the turn's response has already been returned. It is consumed out
// of band (alerting); it never alters the returned response.
type EventSafetyLateDetection struct {
	EventImpl
	UserText string `json:"user_text"`
	DelayMs  int64  `json:"delay_ms"`
}

func NewSafetyLateDetectionEvent(metadata EventMetadata, userText string, delayMs int64) *EventSafetyLateDetection {
	return &EventSafetyLateDetection{
		EventImpl: EventImpl{Type_: EventTypeSafetyLateDetection, Metadata_: metadata},
		UserText:  userText,
		DelayMs:   delayMs,
	}
}

type EventSafetyClassifierFail struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewSafetyClassifierFailEvent(metadata EventMetadata, err error) *EventSafetyClassifierFail {
	return &EventSafetyClassifierFail{
		EventImpl:   EventImpl{Type_: EventTypeSafetyClassifierFail, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

type EventFollowup struct {
	EventImpl
	Question string `json:"question"`
}

func NewFollowupEvent(metadata EventMetadata, question string) *EventFollowup {
	return &EventFollowup{
		EventImpl: EventImpl{Type_: EventTypeFollowup, Metadata_: metadata},
		Question:  question,
	}
}
