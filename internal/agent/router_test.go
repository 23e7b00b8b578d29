package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/calbot/internal/llm"
	"github.com/xaenox/calbot/internal/memory"
	"github.com/xaenox/calbot/internal/models"
)

func newTestRouter(t *testing.T, cal *stubCalendar, client llm.Client) (*Router, *memory.Store) {
	t.Helper()
	tz, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	store := memory.NewStore(10)
	router := New(Deps{
		LLM:      client,
		Calendar: cal,
		Memory:   store,
		Location: stubLocation{
			loc:     models.Location{City: "Mountain View", Region: "California", Country: "United States"},
			tz:      tz,
			details: "📍 Location: Mountain View, California, United States",
		},
		Logger: zap.NewNop(),
		Now: func() time.Time {
			return time.Date(2026, 3, 1, 15, 0, 0, 0, tz)
		},
	})
	return router, store
}

func TestHandleLocationQuery(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, &stubCalendar{}, &stubLLM{})

	got := router.Handle(context.Background(), "u1", "where am i")
	assert.Equal(t, "📍 Location: Mountain View, California, United States", got)
}

func TestHandleResetClearsOnlyThatUser(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t, &stubCalendar{}, &stubLLM{})
	store.Append("u1", models.Turn{Role: models.RoleUser, Content: "hi"})
	store.Append("u2", models.Turn{Role: models.RoleUser, Content: "hey"})

	got := router.Handle(context.Background(), "u1", "forget")

	assert.Equal(t, "I've reset our conversation history.", got)
	assert.Empty(t, store.History("u1"))
	assert.Len(t, store.History("u2"), 1)
}

func TestHandleGeneralChatAssemblesPromptAndRecordsHistory(t *testing.T) {
	t.Parallel()

	client := &stubLLM{replies: []string{"You have a free afternoon."}}
	router, store := newTestRouter(t, &stubCalendar{}, client)
	store.Append("u1",
		models.Turn{Role: models.RoleUser, Content: "hi"},
		models.Turn{Role: models.RoleAssistant, Content: "hello"},
	)

	got := router.Handle(context.Background(), "u1", "do I have a busy day?")
	assert.Equal(t, "You have a free afternoon.", got)

	require.Len(t, client.calls, 1)
	turns := client.calls[0]
	require.Len(t, turns, 4)
	assert.Equal(t, models.RoleSystem, turns[0].Role)
	assert.Equal(t, systemPrompt, turns[0].Content)
	assert.Equal(t, "hi", turns[1].Content)
	assert.Equal(t, "hello", turns[2].Content)
	assert.Equal(t,
		"My location: Mountain View, California, United States\n\ndo I have a busy day?",
		turns[3].Content)

	history := store.History("u1")
	require.Len(t, history, 4)
	assert.Equal(t, "do I have a busy day?", history[2].Content)
	assert.Equal(t, models.RoleUser, history[2].Role)
	assert.Equal(t, "You have a free afternoon.", history[3].Content)
	assert.Equal(t, models.RoleAssistant, history[3].Role)
}

func TestHandleGeneralChatFailureLeavesHistoryUntouched(t *testing.T) {
	t.Parallel()

	client := &stubLLM{err: errors.New("upstream 503")}
	router, store := newTestRouter(t, &stubCalendar{}, client)

	got := router.Handle(context.Background(), "u1", "hello?")

	assert.Equal(t, "Sorry, I couldn't get a response right now. Please try again.", got)
	assert.Empty(t, store.History("u1"))
}

func TestHandleGeneralChatRateLimited(t *testing.T) {
	t.Parallel()

	client := &stubLLM{err: llm.ErrRateLimited}
	router, store := newTestRouter(t, &stubCalendar{}, client)

	got := router.Handle(context.Background(), "u1", "hello?")

	assert.Equal(t, "You're sending messages too quickly. Please wait a moment and try again.", got)
	assert.Empty(t, store.History("u1"))
}

func TestHandleCreateEvent(t *testing.T) {
	t.Parallel()

	client := &stubLLM{replies: []string{
		`{"summary":"Lunch with Sam","start_time":"tomorrow at noon","location":"Cafe Milano"}`,
	}}
	cal := &stubCalendar{link: "https://calendar.example/ev1"}
	router, _ := newTestRouter(t, cal, client)

	got := router.Handle(context.Background(), "u1", "schedule a lunch with Sam tomorrow at noon")
	assert.Equal(t, "✅ Event created!\nEvent created successfully: https://calendar.example/ev1", got)

	require.Len(t, cal.inserted, 1)
	inserted := cal.inserted[0]
	assert.Equal(t, "Lunch with Sam", inserted.Summary)
	assert.Equal(t, "Cafe Milano", inserted.Location)
	assert.Equal(t, "2026-03-02T12:00:00-08:00", inserted.Start.DateTime)
	assert.Equal(t, "2026-03-02T13:00:00-08:00", inserted.End.DateTime)
	assert.Equal(t, "America/Los_Angeles", inserted.Start.TimeZone)
	assert.Equal(t, "America/Los_Angeles", inserted.End.TimeZone)
}

func TestHandleCreateEventExtractionFailure(t *testing.T) {
	t.Parallel()

	client := &stubLLM{replies: []string{"Sure, happy to help!"}}
	router, _ := newTestRouter(t, &stubCalendar{}, client)

	got := router.Handle(context.Background(), "u1", "schedule a thing")
	assert.True(t, strings.HasPrefix(got, "Failed to create event: malformed extraction"), got)
}

func TestHandleCreateEventInsertFailure(t *testing.T) {
	t.Parallel()

	client := &stubLLM{replies: []string{
		`{"summary":"Lunch","start_time":"2026-03-02T12:00:00-08:00"}`,
	}}
	cal := &stubCalendar{insertErr: errors.New("quota exceeded")}
	router, _ := newTestRouter(t, cal, client)

	got := router.Handle(context.Background(), "u1", "schedule a lunch")
	assert.Equal(t, "Failed to create event: quota exceeded", got)
}

func TestCreateThenPostponeRoundTrip(t *testing.T) {
	t.Parallel()

	cal := &stubCalendar{link: "https://calendar.example/ev1"}
	client := &stubLLM{replies: []string{
		`{"summary":"Demo","start_time":"tomorrow at noon"}`,
	}}
	router, _ := newTestRouter(t, cal, client)

	created := router.Handle(context.Background(), "u1", "schedule a demo tomorrow at noon")
	require.Contains(t, created, "✅ Event created!")

	got := router.Handle(context.Background(), "u1", "postpone Demo 2 hours")
	assert.Equal(t,
		"Event 'Demo' postponed by 2 hours.\nEvent updated successfully: https://calendar.example/ev1",
		got)

	patch := cal.modified["ev1"]
	require.NotNil(t, patch.Start)
	require.NotNil(t, patch.End)
	assert.Equal(t, "2026-03-02T14:00:00-08:00", patch.Start.DateTime)
	assert.Equal(t, "2026-03-02T15:00:00-08:00", patch.End.DateTime)
}

func TestHandlePostpone(t *testing.T) {
	t.Parallel()

	cal := &stubCalendar{
		link: "https://calendar.example/ev7",
		events: []models.Event{{
			ID:      "ev7",
			Summary: "Demo",
			Start:   models.EventDateTime{DateTime: "2026-03-03T10:00:00-08:00", TimeZone: "America/Los_Angeles"},
			End:     models.EventDateTime{DateTime: "2026-03-03T10:30:00-08:00", TimeZone: "America/Los_Angeles"},
		}},
	}
	router, _ := newTestRouter(t, cal, &stubLLM{})

	got := router.Handle(context.Background(), "u1", "postpone Demo 2 hours")
	assert.Equal(t,
		"Event 'Demo' postponed by 2 hours.\nEvent updated successfully: https://calendar.example/ev7",
		got)

	patch, ok := cal.modified["ev7"]
	require.True(t, ok)
	require.NotNil(t, patch.Start)
	require.NotNil(t, patch.End)
	assert.Equal(t, "2026-03-03T12:00:00-08:00", patch.Start.DateTime)
	assert.Equal(t, "2026-03-03T12:30:00-08:00", patch.End.DateTime)
	assert.Equal(t, "America/Los_Angeles", patch.Start.TimeZone)
	assert.Nil(t, patch.Location)
	assert.Nil(t, patch.Attendees)
}

func TestHandlePostponeUnknownEvent(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, &stubCalendar{}, &stubLLM{})

	got := router.Handle(context.Background(), "u1", "postpone Ghost 2 hours")
	assert.Equal(t, "Could not find event 'Ghost'", got)
}

func TestHandlePostponeWithoutEventName(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, &stubCalendar{}, &stubLLM{})

	got := router.Handle(context.Background(), "u1", "postpone")
	assert.Equal(t, "Please specify which event to postpone.", got)
}

func TestHandlePostponeCalendarOutage(t *testing.T) {
	t.Parallel()

	cal := &stubCalendar{listErr: errors.New("backend unavailable")}
	router, _ := newTestRouter(t, cal, &stubLLM{})

	got := router.Handle(context.Background(), "u1", "postpone Demo 2 hours")
	assert.True(t, strings.HasPrefix(got, "Failed to postpone event:"), got)
	assert.Contains(t, got, "backend unavailable")
}

func TestHandleUpdateLocation(t *testing.T) {
	t.Parallel()

	cal := &stubCalendar{
		link: "https://calendar.example/ev3",
		events: []models.Event{{
			ID:      "ev3",
			Summary: "Standup",
			Start:   models.EventDateTime{DateTime: "2026-03-03T10:00:00-08:00"},
			End:     models.EventDateTime{DateTime: "2026-03-03T10:15:00-08:00"},
		}},
	}
	router, _ := newTestRouter(t, cal, &stubLLM{})

	got := router.Handle(context.Background(), "u1", "update location of standup to Room 5")
	assert.Equal(t,
		"Updated location for 'standup' to: Room 5\nEvent updated successfully: https://calendar.example/ev3",
		got)

	patch, ok := cal.modified["ev3"]
	require.True(t, ok)
	require.NotNil(t, patch.Location)
	assert.Equal(t, "Room 5", *patch.Location)
	assert.Nil(t, patch.Start)
	assert.Nil(t, patch.End)
}

func TestHandleUpdateAttendeesMergesWithoutDuplicates(t *testing.T) {
	t.Parallel()

	cal := &stubCalendar{
		link: "https://calendar.example/ev3",
		events: []models.Event{{
			ID:      "ev3",
			Summary: "Standup",
			Attendees: []models.Attendee{
				{Email: "alice@example.com", ResponseStatus: "accepted"},
			},
		}},
	}
	router, _ := newTestRouter(t, cal, &stubLLM{})

	got := router.Handle(context.Background(), "u1",
		"add attendee standup to alice@example.com bob@example.com")
	assert.Equal(t,
		"Updated attendees for 'standup'\nNew attendees: alice@example.com, bob@example.com\n"+
			"Event updated successfully: https://calendar.example/ev3",
		got)

	patch, ok := cal.modified["ev3"]
	require.True(t, ok)
	require.Len(t, patch.Attendees, 2)
	assert.Equal(t, "alice@example.com", patch.Attendees[0].Email)
	assert.Equal(t, "accepted", patch.Attendees[0].ResponseStatus)
	assert.Equal(t, "bob@example.com", patch.Attendees[1].Email)
}

func TestMergeAttendeesIsIdempotent(t *testing.T) {
	t.Parallel()

	existing := []models.Attendee{{Email: "alice@example.com"}}

	once := mergeAttendees(existing, []string{"Bob@Example.com"})
	twice := mergeAttendees(once, []string{"bob@example.com"})

	assert.Equal(t, once, twice)
	assert.Len(t, twice, 2)
}
