package models

import "strings"

// Intent is the routed meaning of an incoming message.
type Intent string

const (
	IntentLocationQuery   Intent = "location_query"
	IntentReset           Intent = "reset"
	IntentCreateEvent     Intent = "create_event"
	IntentPostpone        Intent = "postpone"
	IntentUpdateLocation  Intent = "update_location"
	IntentUpdateAttendees Intent = "update_attendees"
	IntentGeneralChat     Intent = "general_chat"
)

// Chat roles as used on the LLM wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single conversational exchange entry kept in per-user history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EventDateTime mirrors the calendar API's start/end object. Timed events
// carry DateTime (RFC 3339), all-day events carry Date (YYYY-MM-DD).
type EventDateTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Attendee is a calendar event participant.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

// Event is the calendar event representation shared across the bot.
type Event struct {
	ID        string        `json:"id,omitempty"`
	Summary   string        `json:"summary,omitempty"`
	Location  string        `json:"location,omitempty"`
	Start     EventDateTime `json:"start"`
	End       EventDateTime `json:"end"`
	Attendees []Attendee    `json:"attendees,omitempty"`
	HTMLLink  string        `json:"htmlLink,omitempty"`
}

// EventPatch is a partial change set applied onto an existing event.
// Nil fields leave the current value untouched.
type EventPatch struct {
	Summary   *string
	Location  *string
	Start     *EventDateTime
	End       *EventDateTime
	Attendees []Attendee
}

// CreateEventCmd is the structured result of LLM event extraction.
type CreateEventCmd struct {
	Summary   string `json:"summary"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`
	Location  string `json:"location,omitempty"`
}

// PostponeCmd shifts a named event forward by whole hours.
type PostponeCmd struct {
	EventName string
	Hours     int
}

// UpdateLocationCmd rewrites the location of a named event.
type UpdateLocationCmd struct {
	EventName   string
	NewLocation string
}

// UpdateAttendeesCmd adds attendees to a named event.
type UpdateAttendeesCmd struct {
	EventName string
	Emails    []string
}

// Location describes where the bot's user currently is, as reported by a
// geolocation provider or configured statically.
type Location struct {
	City     string
	Region   string
	Country  string
	Lat      float64
	Lon      float64
	ISP      string
	Timezone string
}

// Label renders the location as "City, Region, Country", skipping empty
// parts. An entirely empty location reads "Location unknown".
func (l Location) Label() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.City, l.Region, l.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "Location unknown"
	}
	return strings.Join(parts, ", ")
}
