package conversation

// MessageType is the closed tag identifying the shape of a structured
// response payload. Every type must have a schema registered for it at
// startup; see the schema package.
type MessageType string

const (
	MessageTypeText                MessageType = "text"
	MessageTypeSafety              MessageType = "safety"
	MessageTypeContentList         MessageType = "content_list"
	MessageTypeContentDetail       MessageType = "content_detail"
	MessageTypeBookingOptions      MessageType = "booking_options"
	MessageTypeBookingConfirmation MessageType = "booking_confirmation"
	MessageTypeFollowup            MessageType = "followup"
)

// MessageTypes returns the full enumeration. Registries use this to check
// coverage eagerly.
func MessageTypes() []MessageType {
	return []MessageType{
		MessageTypeText,
		MessageTypeSafety,
		MessageTypeContentList,
		MessageTypeContentDetail,
		MessageTypeBookingOptions,
		MessageTypeBookingConfirmation,
		MessageTypeFollowup,
	}
}

func (mt MessageType) Valid() bool {
	for _, t := range MessageTypes() {
		if t == mt {
			return true
		}
	}
	return false
}

// IsStructured reports whether the type carries a non-text payload that
// warrants a follow-up question after being surfaced.
func (mt MessageType) IsStructured() bool {
	switch mt {
	case MessageTypeText, MessageTypeSafety, MessageTypeFollowup, "":
		return false
	default:
		return true
	}
}
