package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/calbot/internal/models"
)

// Calendar is the slice of the calendar service the agent consumes.
type Calendar interface {
	ListUpcoming(ctx context.Context, maxResults int) ([]models.Event, error)
	Get(ctx context.Context, eventID string) (models.Event, error)
	Insert(ctx context.Context, event models.Event) (models.Event, error)
	Modify(ctx context.Context, eventID string, patch models.EventPatch) (models.Event, error)
}

// searchWindow is how many upcoming events a name lookup scans. Deliberately
// small: commands target things happening soon.
const searchWindow = 10

// Resolver finds events by their exact title among upcoming events. Matching
// is case-insensitive but never fuzzy: "standup" does not match "Standup
// prep", so a command can't silently hit the wrong meeting.
type Resolver struct {
	calendar Calendar
}

func NewResolver(calendar Calendar) *Resolver {
	return &Resolver{calendar: calendar}
}

// FindByName returns the first upcoming event whose summary equals name.
// Listing failures are collaborator errors; no match wraps ErrNotFound.
func (r *Resolver) FindByName(ctx context.Context, name string) (models.Event, error) {
	events, err := r.calendar.ListUpcoming(ctx, searchWindow)
	if err != nil {
		return models.Event{}, &CollaboratorError{Collaborator: "calendar", Err: err}
	}
	for _, event := range events {
		if strings.EqualFold(event.Summary, name) {
			return event, nil
		}
	}
	return models.Event{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}
