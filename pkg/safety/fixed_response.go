package safety

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/go-go-golems/mindwell/pkg/conversation"
	"github.com/go-go-golems/mindwell/pkg/schema"
)

// Resource is one entry of the crisis resource list.
type Resource struct {
	Name        string `json:"name"`
	Contact     string `json:"contact"`
	Description string `json:"description,omitempty"`
}

// FixedPayload is the process-wide constant payload returned whenever the
// emergency path triggers. Content here is data, not logic.
type FixedPayload struct {
	Resources      []Resource `json:"resources"`
	SafetyQuestion string     `json:"safetyQuestion"`
}

const fixedResponseText = "It sounds like you might be going through something really difficult right now. " +
	"You don't have to face this alone - trained people are available to talk right away."

// FixedResponse returns the constant crisis payload.
func FixedResponse() FixedPayload {
	return FixedPayload{
		Resources: []Resource{
			{
				Name:        "988 Suicide & Crisis Lifeline",
				Contact:     "Call or text 988",
				Description: "Free, confidential support 24/7 in the US",
			},
			{
				Name:        "Crisis Text Line",
				Contact:     "Text HOME to 741741",
				Description: "Text with a trained crisis counselor",
			},
			{
				Name:        "International Association for Suicide Prevention",
				Contact:     "https://www.iasp.info/resources/Crisis_Centres/",
				Description: "Crisis centers outside the US",
			},
		},
		SafetyQuestion: "Are you safe right now?",
	}
}

// FixedResponseText is the human-readable message accompanying the payload.
func FixedResponseText() string {
	return fixedResponseText
}

// FixedResponsePayload returns the crisis payload serialized for state
// merging. Marshalling a static struct cannot fail; panic would indicate a
// build-time defect.
func FixedResponsePayload() json.RawMessage {
	b, err := json.Marshal(FixedResponse())
	if err != nil {
		panic(err)
	}
	return b
}

// CheckFixedResponse verifies at startup that the constant payload passes
// the schema registered for the safety message type. The contract is that
// the fixed response is always well-formed; a deployment with a broken one
// must not boot.
func CheckFixedResponse(reg *schema.Registry) error {
	res, err := reg.Validate(conversation.MessageTypeSafety, FixedResponsePayload())
	if err != nil {
		return errors.Wrap(err, "validate fixed safety response")
	}
	if !res.Valid {
		return errors.Errorf("fixed safety response does not pass its schema: %v", res.Errors)
	}
	return nil
}
