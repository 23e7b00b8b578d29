package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xaenox/calbot/internal/metrics"
	"github.com/xaenox/calbot/internal/models"
	"github.com/xaenox/calbot/internal/travel"
	"github.com/xaenox/calbot/internal/weather"
)

// LocationSource is the slice of the geolocation state the agent consumes.
type LocationSource interface {
	Current() models.Location
	Timezone() *time.Location
	Details(ctx context.Context) string
}

// Weather reports current conditions for a city.
type Weather interface {
	Current(ctx context.Context, city string) (weather.Observation, error)
}

// Travel estimates the trip between two free-form places.
type Travel interface {
	Estimate(ctx context.Context, origin, destination string) (travel.Estimate, error)
}

var calendarKeywords = []string{"calendar", "schedule", "event", "meeting"}
var travelKeywords = []string{"far", "distance", "travel time", "how long"}

// digestSize caps how many events the calendar digest includes.
const digestSize = 5

// Assembler builds the auxiliary context prepended to general-chat LLM
// calls: always the location line, plus weather, travel and calendar digest
// sections when available and asked about. A failing collaborator costs only
// its own section, never the reply.
type Assembler struct {
	location LocationSource
	weather  Weather
	travel   Travel
	calendar Calendar
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewAssembler(location LocationSource, w Weather, t Travel, calendar Calendar,
	m *metrics.Metrics, logger *zap.Logger) *Assembler {
	return &Assembler{
		location: location,
		weather:  w,
		travel:   t,
		calendar: calendar,
		metrics:  m,
		logger:   logger,
	}
}

// Build assembles the context block for one message. Sections fetch
// concurrently; the group never returns an error because a failed section
// is simply left out.
func (a *Assembler) Build(ctx context.Context, text string) string {
	msg := strings.ToLower(text)
	label := a.location.Current().Label()

	var weatherLine, travelInfo, digest string
	g, gctx := errgroup.WithContext(ctx)

	if a.weather != nil {
		g.Go(func() error {
			weatherLine = a.weatherLine(gctx, label)
			return nil
		})
	}
	if containsAny(msg, travelKeywords) {
		g.Go(func() error {
			travelInfo = a.nextEventTravel(gctx)
			return nil
		})
	}
	if containsAny(msg, calendarKeywords) {
		g.Go(func() error {
			digest = a.calendarDigest(gctx)
			return nil
		})
	}
	// Sections absorb their own failures, so the group cannot error.
	_ = g.Wait()

	var b strings.Builder
	b.WriteString("My location: " + label + "\n")
	if weatherLine != "" {
		b.WriteString(weatherLine + "\n")
	}
	if travelInfo != "" {
		b.WriteString("\n" + travelInfo + "\n")
	}
	b.WriteString(digest)
	return b.String()
}

func (a *Assembler) weatherLine(ctx context.Context, label string) string {
	city := strings.TrimSpace(strings.Split(label, ",")[0])
	obs, err := a.weather.Current(ctx, city)
	if err != nil {
		a.logger.Warn("Weather section skipped", zap.Error(err))
		a.metrics.CollaboratorFailure("weather")
		return ""
	}
	return fmt.Sprintf("Current weather in %s: %s, %.1f°C (%.1f°F)",
		city, obs.Description, obs.TempC, obs.TempF())
}

func (a *Assembler) calendarDigest(ctx context.Context) string {
	events, err := a.calendar.ListUpcoming(ctx, digestSize)
	if err != nil {
		a.logger.Warn("Calendar digest skipped", zap.Error(err))
		a.metrics.CollaboratorFailure("calendar")
		return ""
	}

	var b strings.Builder
	b.WriteString("Here are my upcoming events:\n")
	for _, event := range events {
		b.WriteString(a.eventDetails(ctx, event) + "\n")
	}
	return b.String()
}

// eventDetails renders one digest entry: title with local start time, then
// location, travel estimate and attendee responses when present.
func (a *Assembler) eventDetails(ctx context.Context, event models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s (%s)", event.Summary, a.eventClock(event.Start, "03:04 PM MST"))

	if event.Location != "" {
		b.WriteString("\n  Location: " + event.Location)
		if a.travel != nil {
			estimate, err := a.travel.Estimate(ctx, a.location.Current().Label(), event.Location)
			if err != nil {
				a.logger.Warn("Travel estimate skipped",
					zap.String("destination", event.Location),
					zap.Error(err))
				a.metrics.CollaboratorFailure("travel")
			} else {
				b.WriteString("\n  " + estimate.String())
			}
		}
	}

	if len(event.Attendees) > 0 {
		b.WriteString("\n  Attendees:")
		for _, attendee := range event.Attendees {
			status := attendee.ResponseStatus
			if status == "" {
				status = "no response"
			}
			name := attendee.DisplayName
			if name == "" {
				name = attendee.Email
			}
			fmt.Fprintf(&b, "\n    - %s (%s)", name, status)
		}
	}
	return b.String()
}

// nextEventTravel describes the trip to the next event. The "empty" answers
// are real sentences: the model should know there is nothing to go to.
func (a *Assembler) nextEventTravel(ctx context.Context) string {
	events, err := a.calendar.ListUpcoming(ctx, 1)
	if err != nil {
		a.logger.Warn("Travel section skipped", zap.Error(err))
		a.metrics.CollaboratorFailure("calendar")
		return ""
	}
	if len(events) == 0 {
		return "No upcoming events found."
	}

	event := events[0]
	if event.Location == "" {
		return "Next event has no location specified."
	}

	if a.travel != nil {
		estimate, err := a.travel.Estimate(ctx, a.location.Current().Label(), event.Location)
		if err == nil {
			return fmt.Sprintf("Next event: %s at %s\nLocation: %s\n%s",
				event.Summary, a.eventClock(event.Start, "03:04 PM"), event.Location, estimate)
		}
		a.logger.Warn("Travel estimate skipped",
			zap.String("destination", event.Location),
			zap.Error(err))
		a.metrics.CollaboratorFailure("travel")
	}
	return "Could not calculate travel time to: " + event.Location
}

// eventClock formats an event's start in the user's zone, tolerating
// all-day dates and unparseable values.
func (a *Assembler) eventClock(start models.EventDateTime, layout string) string {
	tz := a.location.Timezone()
	if start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, start.DateTime); err == nil {
			return t.In(tz).Format(layout)
		}
		return start.DateTime
	}
	if start.Date != "" {
		if t, err := time.ParseInLocation("2006-01-02", start.Date, tz); err == nil {
			return t.Format(layout)
		}
		return start.Date
	}
	return "unscheduled"
}
