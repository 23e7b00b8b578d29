package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xaenox/calbot/internal/models"
	"github.com/xaenox/calbot/internal/travel"
	"github.com/xaenox/calbot/internal/weather"
)

type stubLLM struct {
	replies []string
	err     error
	calls   [][]models.Turn
}

func (s *stubLLM) Complete(_ context.Context, turns []models.Turn) (string, error) {
	copied := make([]models.Turn, len(turns))
	copy(copied, turns)
	s.calls = append(s.calls, copied)

	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("stub llm: no scripted reply")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

// stubCalendar is safe for concurrent listing because the context assembler
// fetches its sections in parallel.
type stubCalendar struct {
	mu        sync.Mutex
	events    []models.Event
	listErr   error
	listCalls []int

	inserted  []models.Event
	insertErr error

	stored map[string]models.Event
	getErr error

	modified  map[string]models.EventPatch
	modifyErr error

	link string
}

func (s *stubCalendar) ListUpcoming(_ context.Context, maxResults int) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls = append(s.listCalls, maxResults)
	if s.listErr != nil {
		return nil, s.listErr
	}
	if maxResults < len(s.events) {
		return s.events[:maxResults], nil
	}
	return s.events, nil
}

func (s *stubCalendar) Get(_ context.Context, eventID string) (models.Event, error) {
	if s.getErr != nil {
		return models.Event{}, s.getErr
	}
	return s.stored[eventID], nil
}

func (s *stubCalendar) Insert(_ context.Context, event models.Event) (models.Event, error) {
	if s.insertErr != nil {
		return models.Event{}, s.insertErr
	}
	event.ID = fmt.Sprintf("ev%d", len(s.inserted)+1)
	event.HTMLLink = s.link
	s.inserted = append(s.inserted, event)
	if s.stored == nil {
		s.stored = make(map[string]models.Event)
	}
	s.stored[event.ID] = event

	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return event, nil
}

func (s *stubCalendar) Modify(_ context.Context, eventID string, patch models.EventPatch) (models.Event, error) {
	if s.modifyErr != nil {
		return models.Event{}, s.modifyErr
	}
	if s.modified == nil {
		s.modified = make(map[string]models.EventPatch)
	}
	s.modified[eventID] = patch
	return models.Event{ID: eventID, HTMLLink: s.link}, nil
}

type stubLocation struct {
	loc     models.Location
	tz      *time.Location
	details string
}

func (s stubLocation) Current() models.Location { return s.loc }

func (s stubLocation) Timezone() *time.Location {
	if s.tz != nil {
		return s.tz
	}
	return time.UTC
}

func (s stubLocation) Details(context.Context) string { return s.details }

type stubWeather struct {
	obs weather.Observation
	err error
}

func (s stubWeather) Current(context.Context, string) (weather.Observation, error) {
	return s.obs, s.err
}

type stubTravel struct {
	estimate travel.Estimate
	err      error

	mu    sync.Mutex
	calls [][2]string
}

func (s *stubTravel) Estimate(_ context.Context, origin, destination string) (travel.Estimate, error) {
	s.mu.Lock()
	s.calls = append(s.calls, [2]string{origin, destination})
	s.mu.Unlock()
	if s.err != nil {
		return travel.Estimate{}, s.err
	}
	return s.estimate, nil
}
