package toolbox

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mindwell/pkg/conversation"
	"github.com/go-go-golems/mindwell/pkg/tools"
)

// ContentEntry is a single catalog entry. The list form projected back to the
// client carries only id/title/kind; the body travels on content_detail.
type ContentEntry struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Kind   string   `json:"kind"`
	Topics []string `json:"-"`
	Body   string   `json:"-"`
}

// BookingOption is one practitioner with their open slots.
type BookingOption struct {
	OptionID     string   `json:"optionID"`
	Practitioner string   `json:"practitioner"`
	Practice     string   `json:"practice,omitempty"`
	Times        []string `json:"times"`
}

// Booking records a confirmed session.
type Booking struct {
	BookingRef string `json:"bookingRef"`
	OptionID   string `json:"optionID"`
	Time       string `json:"time"`
	Status     string `json:"status"`
}

// Toolbox serves the content catalog and session booking tools backing the
// assistant. State is in memory; bookings mutate under a lock.
type Toolbox struct {
	mu       sync.Mutex
	content  []ContentEntry
	options  []BookingOption
	bookings map[string]Booking
}

// New returns a toolbox over the built-in demo catalog.
func New() *Toolbox {
	return &Toolbox{
		content:  defaultCatalog(),
		options:  defaultBookingOptions(),
		bookings: map[string]Booking{},
	}
}

// NewWithCatalog lets tests and embedders supply their own data.
func NewWithCatalog(content []ContentEntry, options []BookingOption) *Toolbox {
	return &Toolbox{
		content:  content,
		options:  options,
		bookings: map[string]Booking{},
	}
}

type SearchContentArgs struct {
	Topic string `json:"topic" jsonschema:"description=Topic to search for, e.g. sleep or anxiety"`
	Kind  string `json:"kind,omitempty" jsonschema:"description=Optional kind filter: meditation, article or exercise"`
}

type GetContentArgs struct {
	ID string `json:"id" jsonschema:"description=Catalog id of the content item"`
}

type ListBookingOptionsArgs struct {
	Practice string `json:"practice,omitempty" jsonschema:"description=Optional practice filter, e.g. CBT or mindfulness"`
}

type BookSessionArgs struct {
	OptionID string `json:"optionID" jsonschema:"description=Option id from a previous list_booking_options call"`
	Time     string `json:"time" jsonschema:"description=One of the offered time slots"`
}

// Register wires all four tools into the given registry.
func (tb *Toolbox) Register(reg tools.Registry) error {
	specs := []struct {
		name, description string
		fn                interface{}
	}{
		{"search_content", "Search the wellness content catalog by topic", tb.SearchContent},
		{"get_content", "Fetch the full body of one content item by id", tb.GetContent},
		{"list_booking_options", "List practitioners with open session slots", tb.ListBookingOptions},
		{"book_session", "Book a session slot with a practitioner", tb.BookSession},
	}
	for _, spec := range specs {
		def, err := tools.NewDefinitionFromFunc(spec.name, spec.description, spec.fn)
		if err != nil {
			return errors.Wrapf(err, "could not build tool %s", spec.name)
		}
		if err := reg.Register(*def); err != nil {
			return err
		}
	}
	return nil
}

// SearchContent returns a content_list envelope with the matching items.
func (tb *Toolbox) SearchContent(args SearchContentArgs) (string, error) {
	topic := strings.ToLower(strings.TrimSpace(args.Topic))
	if topic == "" {
		return "", errors.New("topic must not be empty")
	}

	var items []conversation.ContentItem
	for _, entry := range tb.content {
		if args.Kind != "" && entry.Kind != args.Kind {
			continue
		}
		for _, t := range entry.Topics {
			if strings.Contains(t, topic) || strings.Contains(topic, t) {
				items = append(items, conversation.ContentItem{ID: entry.ID, Title: entry.Title, Kind: entry.Kind})
				break
			}
		}
	}
	if items == nil {
		items = []conversation.ContentItem{}
	}
	log.Debug().Str("topic", topic).Int("matches", len(items)).Msg("content search")

	payload, err := json.Marshal(map[string]any{"items": items, "topic": topic})
	if err != nil {
		return "", errors.Wrap(err, "could not marshal content list")
	}
	return (&conversation.ToolResult{
		MessageType: conversation.MessageTypeContentList,
		Payload:     payload,
		TextContent: fmt.Sprintf("Found %d items for %q", len(items), topic),
	}).Serialize()
}

// GetContent returns a content_detail envelope for the item with the given id.
func (tb *Toolbox) GetContent(args GetContentArgs) (string, error) {
	for _, entry := range tb.content {
		if entry.ID != args.ID {
			continue
		}
		payload, err := json.Marshal(map[string]any{
			"id":    entry.ID,
			"title": entry.Title,
			"kind":  entry.Kind,
			"body":  entry.Body,
		})
		if err != nil {
			return "", errors.Wrap(err, "could not marshal content detail")
		}
		return (&conversation.ToolResult{
			MessageType: conversation.MessageTypeContentDetail,
			Payload:     payload,
			TextContent: entry.Title,
		}).Serialize()
	}
	return "", errors.Errorf("no content item with id %q", args.ID)
}

// ListBookingOptions returns a booking_options envelope.
func (tb *Toolbox) ListBookingOptions(args ListBookingOptionsArgs) (string, error) {
	var options []BookingOption
	for _, opt := range tb.options {
		if args.Practice != "" && !strings.EqualFold(opt.Practice, args.Practice) {
			continue
		}
		options = append(options, opt)
	}
	if options == nil {
		options = []BookingOption{}
	}

	payload, err := json.Marshal(map[string]any{"options": options})
	if err != nil {
		return "", errors.Wrap(err, "could not marshal booking options")
	}
	return (&conversation.ToolResult{
		MessageType: conversation.MessageTypeBookingOptions,
		Payload:     payload,
		TextContent: fmt.Sprintf("%d practitioners have open slots", len(options)),
	}).Serialize()
}

// BookSession reserves a slot and returns a booking_confirmation envelope.
func (tb *Toolbox) BookSession(args BookSessionArgs) (string, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	opt, err := tb.findOption(args.OptionID)
	if err != nil {
		return "", err
	}
	slot := -1
	for i, t := range opt.Times {
		if t == args.Time {
			slot = i
			break
		}
	}
	if slot < 0 {
		return "", errors.Errorf("option %s has no slot at %q", args.OptionID, args.Time)
	}
	opt.Times = append(opt.Times[:slot], opt.Times[slot+1:]...)

	booking := Booking{
		BookingRef: "bk-" + uuid.New().String()[:8],
		OptionID:   args.OptionID,
		Time:       args.Time,
		Status:     "confirmed",
	}
	tb.bookings[booking.BookingRef] = booking
	log.Info().Str("booking_ref", booking.BookingRef).Str("option_id", booking.OptionID).Msg("session booked")

	payload, err := json.Marshal(booking)
	if err != nil {
		return "", errors.Wrap(err, "could not marshal booking confirmation")
	}
	return (&conversation.ToolResult{
		MessageType: conversation.MessageTypeBookingConfirmation,
		Payload:     payload,
		TextContent: fmt.Sprintf("Booked %s with %s", args.Time, opt.Practitioner),
	}).Serialize()
}

// Booking looks up a previously confirmed booking by reference.
func (tb *Toolbox) Booking(ref string) (Booking, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	b, ok := tb.bookings[ref]
	return b, ok
}

func (tb *Toolbox) findOption(optionID string) (*BookingOption, error) {
	for i := range tb.options {
		if tb.options[i].OptionID == optionID {
			return &tb.options[i], nil
		}
	}
	return nil, errors.Errorf("no booking option with id %q", optionID)
}

func defaultCatalog() []ContentEntry {
	return []ContentEntry{
		{
			ID: "med-001", Title: "Body scan for sleep", Kind: "meditation",
			Topics: []string{"sleep", "relaxation"},
			Body:   "A 12 minute guided body scan to release tension before bed. Lie down, close your eyes, and bring attention to each part of the body in turn.",
		},
		{
			ID: "med-002", Title: "Three minute breathing space", Kind: "meditation",
			Topics: []string{"anxiety", "stress", "focus"},
			Body:   "A short grounding practice: one minute noticing, one minute gathering attention on the breath, one minute expanding awareness to the whole body.",
		},
		{
			ID: "art-001", Title: "Sleep hygiene basics", Kind: "article",
			Topics: []string{"sleep"},
			Body:   "Regular hours, a cool dark room, no screens in the last hour, and caffeine only before noon. Small habits compound into better nights.",
		},
		{
			ID: "art-002", Title: "Understanding rumination", Kind: "article",
			Topics: []string{"anxiety", "stress", "worry"},
			Body:   "Rumination keeps the mind circling the same worry. Naming the loop, scheduling worry time, and shifting to concrete planning all interrupt it.",
		},
		{
			ID: "exr-001", Title: "Progressive muscle relaxation", Kind: "exercise",
			Topics: []string{"stress", "relaxation", "sleep"},
			Body:   "Tense each muscle group for five seconds, then release for ten. Work from the feet upward. Notice the contrast between tension and release.",
		},
		{
			ID: "exr-002", Title: "Gratitude journaling prompt", Kind: "exercise",
			Topics: []string{"mood", "gratitude"},
			Body:   "Each evening write down three specific things that went well today and what made them possible.",
		},
	}
}

func defaultBookingOptions() []BookingOption {
	return []BookingOption{
		{
			OptionID:     "opt-ansel",
			Practitioner: "Dr. Ansel Reyes",
			Practice:     "CBT",
			Times:        []string{"2026-09-02T10:00", "2026-09-02T14:00", "2026-09-04T09:00"},
		},
		{
			OptionID:     "opt-mira",
			Practitioner: "Mira Chen",
			Practice:     "mindfulness",
			Times:        []string{"2026-09-03T11:00", "2026-09-05T16:00"},
		},
		{
			OptionID:     "opt-jonas",
			Practitioner: "Jonas Feld",
			Practice:     "counseling",
			Times:        []string{"2026-09-02T13:00"},
		},
	}
}
