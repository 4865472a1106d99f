package schema

import (
	"github.com/go-go-golems/mindwell/pkg/conversation"
)

// Default schema documents for the full message type enumeration.
// Validation is structural: required fields, primitive types and enumerated
// string values.

const textSchema = `{
	"type": ["object", "null"],
	"properties": {
		"text": {"type": "string"}
	},
	"additionalProperties": false
}`

const safetySchema = `{
	"type": "object",
	"required": ["resources", "safetyQuestion"],
	"properties": {
		"resources": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["name", "contact"],
				"properties": {
					"name": {"type": "string"},
					"contact": {"type": "string"},
					"description": {"type": "string"}
				},
				"additionalProperties": false
			}
		},
		"safetyQuestion": {"type": "string"}
	},
	"additionalProperties": false
}`

const contentListSchema = `{
	"type": "object",
	"required": ["items", "topic"],
	"properties": {
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "title", "kind"],
				"properties": {
					"id": {"type": "string"},
					"title": {"type": "string"},
					"kind": {"type": "string", "enum": ["meditation", "article", "exercise"]}
				},
				"additionalProperties": false
			}
		},
		"topic": {"type": "string"}
	},
	"additionalProperties": false
}`

const contentDetailSchema = `{
	"type": "object",
	"required": ["id", "title", "kind", "body"],
	"properties": {
		"id": {"type": "string"},
		"title": {"type": "string"},
		"kind": {"type": "string", "enum": ["meditation", "article", "exercise"]},
		"body": {"type": "string"}
	},
	"additionalProperties": false
}`

const bookingOptionsSchema = `{
	"type": "object",
	"required": ["options"],
	"properties": {
		"options": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["optionID", "practitioner", "times"],
				"properties": {
					"optionID": {"type": "string"},
					"practitioner": {"type": "string"},
					"practice": {"type": "string"},
					"times": {
						"type": "array",
						"items": {"type": "string"}
					}
				},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`

const bookingConfirmationSchema = `{
	"type": "object",
	"required": ["bookingRef", "optionID", "time", "status"],
	"properties": {
		"bookingRef": {"type": "string"},
		"optionID": {"type": "string"},
		"time": {"type": "string"},
		"status": {"type": "string", "enum": ["confirmed", "pending"]}
	},
	"additionalProperties": false
}`

const followupSchema = `{
	"type": "object",
	"required": ["question"],
	"properties": {
		"question": {"type": "string"}
	},
	"additionalProperties": false
}`

// DefaultDefinitions returns the schema documents keyed by message type.
func DefaultDefinitions() map[conversation.MessageType]string {
	return map[conversation.MessageType]string{
		conversation.MessageTypeText:                textSchema,
		conversation.MessageTypeSafety:              safetySchema,
		conversation.MessageTypeContentList:         contentListSchema,
		conversation.MessageTypeContentDetail:       contentDetailSchema,
		conversation.MessageTypeBookingOptions:      bookingOptionsSchema,
		conversation.MessageTypeBookingConfirmation: bookingConfirmationSchema,
		conversation.MessageTypeFollowup:            followupSchema,
	}
}

// DefaultRegistry builds the registry for the full enumeration and checks
// coverage.
func DefaultRegistry() (*Registry, error) {
	r, err := NewRegistry(DefaultDefinitions())
	if err != nil {
		return nil, err
	}
	if err := r.Covers(conversation.MessageTypes()); err != nil {
		return nil, err
	}
	return r, nil
}

// MustDefaultRegistry panics on configuration errors; intended for startup
// wiring where a missing or broken schema must abort the process.
func MustDefaultRegistry() *Registry {
	r, err := DefaultRegistry()
	if err != nil {
		panic(err)
	}
	return r
}
