package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/xaenox/calbot/internal/models"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewService(
		Config{CalendarID: "primary", BaseURL: server.URL},
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
		zap.NewNop(),
	)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestListUpcomingRequestShape(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		query := r.URL.Query()
		assert.Equal(t, "10", query.Get("maxResults"))
		assert.Equal(t, "startTime", query.Get("orderBy"))
		assert.Equal(t, "true", query.Get("singleEvents"))
		assert.Equal(t, "2026-03-01T09:00:00Z", query.Get("timeMin"))

		json.NewEncoder(w).Encode(map[string]any{
			"items": []models.Event{
				{ID: "ev1", Summary: "Standup"},
				{ID: "ev2", Summary: "Demo"},
			},
		})
	}))

	events, err := svc.ListUpcoming(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Standup", events[0].Summary)
}

func TestInsertNotifiesAttendees(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "all", r.URL.Query().Get("sendUpdates"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body models.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Lunch", body.Summary)

		body.ID = "new1"
		body.HTMLLink = "https://calendar.example/new1"
		json.NewEncoder(w).Encode(body)
	}))

	created, err := svc.Insert(context.Background(), models.Event{
		Summary: "Lunch",
		Start:   models.EventDateTime{DateTime: "2026-03-02T12:00:00-08:00", TimeZone: "America/Los_Angeles"},
		End:     models.EventDateTime{DateTime: "2026-03-02T13:00:00-08:00", TimeZone: "America/Los_Angeles"},
	})
	require.NoError(t, err)
	assert.Equal(t, "new1", created.ID)
	assert.Equal(t, "https://calendar.example/new1", created.HTMLLink)
}

func TestModifyMergesBeforeWriting(t *testing.T) {
	t.Parallel()

	stored := models.Event{
		ID:       "ev1",
		Summary:  "Standup",
		Location: "Room 1",
		Start:    models.EventDateTime{DateTime: "2026-03-01T10:00:00-08:00", TimeZone: "America/Los_Angeles"},
		End:      models.EventDateTime{DateTime: "2026-03-01T10:30:00-08:00", TimeZone: "America/Los_Angeles"},
		Attendees: []models.Attendee{
			{Email: "alice@example.com", ResponseStatus: "accepted"},
		},
	}

	var putBody models.Event
	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/primary/events/ev1", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(stored)
		case http.MethodPut:
			assert.Equal(t, "all", r.URL.Query().Get("sendUpdates"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&putBody))
			json.NewEncoder(w).Encode(putBody)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})
	svc := newTestService(t, mux)

	updated, err := svc.Modify(context.Background(), "ev1", models.EventPatch{Location: strPtr("Room 5")})
	require.NoError(t, err)

	assert.Equal(t, "Room 5", updated.Location)
	assert.Equal(t, "Standup", putBody.Summary)
	assert.Equal(t, stored.Start, putBody.Start)
	assert.Equal(t, stored.Attendees, putBody.Attendees)
}

func TestAPIErrorCarriesStatusAndMessage(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 404, "message": "Not Found"},
		})
	}))

	_, err := svc.Get(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Not Found", apiErr.Message)
}
