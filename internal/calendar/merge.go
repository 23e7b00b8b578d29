package calendar

import "github.com/xaenox/calbot/internal/models"

// mergeEvent applies patch onto event, key-wise. Start and end are merged
// per field so a patch that only moves the clock time keeps the stored
// timezone, and vice versa. A non-nil attendee list replaces the previous
// one wholesale; callers merge and dedupe before patching.
func mergeEvent(event models.Event, patch models.EventPatch) models.Event {
	if patch.Summary != nil {
		event.Summary = *patch.Summary
	}
	if patch.Location != nil {
		event.Location = *patch.Location
	}
	if patch.Start != nil {
		event.Start = mergeDateTime(event.Start, *patch.Start)
	}
	if patch.End != nil {
		event.End = mergeDateTime(event.End, *patch.End)
	}
	if patch.Attendees != nil {
		event.Attendees = patch.Attendees
	}
	return event
}

func mergeDateTime(current, patch models.EventDateTime) models.EventDateTime {
	if patch.DateTime != "" {
		current.DateTime = patch.DateTime
		// A timed value supersedes a previous all-day date.
		current.Date = ""
	}
	if patch.Date != "" {
		current.Date = patch.Date
		current.DateTime = ""
	}
	if patch.TimeZone != "" {
		current.TimeZone = patch.TimeZone
	}
	return current
}
