package toolbox

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/mindwell/pkg/conversation"
	"github.com/go-go-golems/mindwell/pkg/schema"
	"github.com/go-go-golems/mindwell/pkg/tools"
)

func validate(t *testing.T, envelope string) *conversation.ToolResult {
	t.Helper()
	tr, err := conversation.ParseToolResult(envelope)
	require.NoError(t, err)
	result, err := schema.MustDefaultRegistry().Validate(tr.MessageType, tr.Payload)
	require.NoError(t, err)
	require.True(t, result.Valid, "payload should validate: %v", result.Errors)
	return tr
}

func TestRegisterExposesAllTools(t *testing.T) {
	reg := tools.NewInMemoryRegistry()
	require.NoError(t, New().Register(reg))

	for _, name := range []string{"search_content", "get_content", "list_booking_options", "book_session"} {
		assert.True(t, reg.Has(name), name)
	}
	assert.Equal(t, 4, reg.Count())
}

func TestSearchContentReturnsValidContentList(t *testing.T) {
	tb := New()

	envelope, err := tb.SearchContent(SearchContentArgs{Topic: "sleep"})
	require.NoError(t, err)
	tr := validate(t, envelope)
	assert.Equal(t, conversation.MessageTypeContentList, tr.MessageType)
	assert.Contains(t, string(tr.Payload), "Body scan for sleep")
}

func TestSearchContentKindFilter(t *testing.T) {
	tb := New()

	envelope, err := tb.SearchContent(SearchContentArgs{Topic: "sleep", Kind: "article"})
	require.NoError(t, err)
	tr := validate(t, envelope)
	assert.Contains(t, string(tr.Payload), "Sleep hygiene basics")
	assert.NotContains(t, string(tr.Payload), "Body scan")
}

func TestSearchContentNoMatchesStillValid(t *testing.T) {
	envelope, err := New().SearchContent(SearchContentArgs{Topic: "quantum chromodynamics"})
	require.NoError(t, err)
	tr := validate(t, envelope)
	assert.Contains(t, string(tr.Payload), `"items":[]`)
}

func TestSearchContentRejectsEmptyTopic(t *testing.T) {
	_, err := New().SearchContent(SearchContentArgs{Topic: "  "})
	require.Error(t, err)
}

func TestGetContentDetail(t *testing.T) {
	envelope, err := New().GetContent(GetContentArgs{ID: "art-001"})
	require.NoError(t, err)
	tr := validate(t, envelope)
	assert.Equal(t, conversation.MessageTypeContentDetail, tr.MessageType)
	assert.Contains(t, string(tr.Payload), "caffeine")

	_, err = New().GetContent(GetContentArgs{ID: "missing"})
	require.Error(t, err)
}

func TestListBookingOptionsPracticeFilter(t *testing.T) {
	envelope, err := New().ListBookingOptions(ListBookingOptionsArgs{Practice: "cbt"})
	require.NoError(t, err)
	tr := validate(t, envelope)
	assert.Contains(t, string(tr.Payload), "Ansel")
	assert.NotContains(t, string(tr.Payload), "Mira")
}

func TestBookSessionConsumesSlot(t *testing.T) {
	tb := New()

	envelope, err := tb.BookSession(BookSessionArgs{OptionID: "opt-jonas", Time: "2026-09-02T13:00"})
	require.NoError(t, err)
	tr := validate(t, envelope)
	assert.Equal(t, conversation.MessageTypeBookingConfirmation, tr.MessageType)
	assert.Contains(t, string(tr.Payload), `"status":"confirmed"`)

	// The only slot is gone, so booking again fails.
	_, err = tb.BookSession(BookSessionArgs{OptionID: "opt-jonas", Time: "2026-09-02T13:00"})
	require.Error(t, err)
}

func TestBookSessionUnknownOptionOrSlot(t *testing.T) {
	tb := New()

	_, err := tb.BookSession(BookSessionArgs{OptionID: "opt-nope", Time: "2026-09-02T13:00"})
	require.Error(t, err)

	_, err = tb.BookSession(BookSessionArgs{OptionID: "opt-mira", Time: "1999-01-01T00:00"})
	require.Error(t, err)
}

func TestBookingLookup(t *testing.T) {
	tb := New()

	envelope, err := tb.BookSession(BookSessionArgs{OptionID: "opt-mira", Time: "2026-09-03T11:00"})
	require.NoError(t, err)
	tr := validate(t, envelope)

	var confirmed Booking
	require.NoError(t, json.Unmarshal(tr.Payload, &confirmed))
	got, ok := tb.Booking(confirmed.BookingRef)
	require.True(t, ok)
	assert.Equal(t, "2026-09-03T11:00", got.Time)
}
