package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mindwell/pkg/conversation"
	"github.com/go-go-golems/mindwell/pkg/generate"
	"github.com/go-go-golems/mindwell/pkg/tools"
)

// mergeToolResult parses the tool's content as a result envelope, validates
// the payload against its message type schema and, on success, writes the
// type-specific state projection into the delta. Unvalidated data is never
// merged: parse or validation failure leaves the response fields untouched.
func (m *Machine) mergeToolResult(delta *conversation.Delta, res tools.Result) {
	tr, err := conversation.ParseToolResult(res.Content)
	if err != nil {
		// Not an envelope: no structured update, the text stays in history.
		log.Debug().Err(err).Str("tool", res.ToolName).Msg("tool content is plain text")
		return
	}

	vres, err := m.validator.Validate(tr.MessageType, tr.Payload)
	if err != nil {
		log.Error().Err(err).Str("message_type", string(tr.MessageType)).Msg("payload validation misconfigured")
		delta.LastError = conversation.Ptr(err.Error())
		return
	}
	if !vres.Valid {
		details := strings.Join(vres.Errors, "; ")
		log.Warn().
			Str("tool", res.ToolName).
			Str("message_type", string(tr.MessageType)).
			Str("details", details).
			Msg("tool payload failed validation, keeping previous response")
		delta.LastError = conversation.Ptr("invalid payload for " + string(tr.MessageType) + ": " + details)
		return
	}

	delta.ResponseMessage = conversation.Ptr(tr.TextContent)
	delta.ResponseMessageType = conversation.Ptr(tr.MessageType)
	payload := append(json.RawMessage{}, tr.Payload...)
	delta.ResponsePayload = &payload

	switch tr.MessageType {
	case conversation.MessageTypeContentList:
		var p contentListPayload
		if err := json.Unmarshal(tr.Payload, &p); err == nil {
			delta.ContentItems = conversation.Ptr(p.Items)
			delta.ContentTopic = conversation.Ptr(p.Topic)
		}
	case conversation.MessageTypeBookingConfirmation:
		var p bookingConfirmationPayload
		if err := json.Unmarshal(tr.Payload, &p); err == nil {
			delta.BookingRef = conversation.Ptr(p.BookingRef)
		}
	}
}

type contentListPayload struct {
	Items []conversation.ContentItem `json:"items"`
	Topic string                     `json:"topic"`
}

type bookingConfirmationPayload struct {
	BookingRef string `json:"bookingRef"`
}

type bookingOptionsPayload struct {
	Options []json.RawMessage `json:"options"`
}

// followupInput derives the follow-up summary from the current response.
func followupInput(snap *conversation.State) generate.FollowupInput {
	input := generate.FollowupInput{
		MessageType: snap.ResponseMessageType,
		Topic:       snap.ContentTopic,
		BookingRef:  snap.BookingRef,
		Language:    snap.Language,
	}
	switch snap.ResponseMessageType {
	case conversation.MessageTypeContentList:
		input.ItemCount = len(snap.ContentItems)
	case conversation.MessageTypeBookingOptions:
		var p bookingOptionsPayload
		if err := json.Unmarshal(snap.ResponsePayload, &p); err == nil {
			input.ItemCount = len(p.Options)
		}
	}
	return input
}
