package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/xaenox/calbot/internal/models"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// Config carries the calendar connection settings.
type Config struct {
	CalendarID string
	BaseURL    string
	Timeout    time.Duration
}

// Service talks to the Google Calendar v3 REST API for a single calendar.
// Every write is sent with sendUpdates=all so attendees get notified.
type Service struct {
	httpClient *http.Client
	baseURL    string
	calendarID string
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(cfg Config, source oauth2.TokenSource, logger *zap.Logger) *Service {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := oauth2.NewClient(context.Background(), source)
	httpClient.Timeout = cfg.Timeout

	return &Service{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		calendarID: cfg.CalendarID,
		logger:     logger,
		now:        time.Now,
	}
}

// ListUpcoming returns up to maxResults events starting after now, expanded
// to single instances and ordered by start time.
func (s *Service) ListUpcoming(ctx context.Context, maxResults int) ([]models.Event, error) {
	query := url.Values{
		"maxResults":   {strconv.Itoa(maxResults)},
		"orderBy":      {"startTime"},
		"singleEvents": {"true"},
		"timeMin":      {s.now().UTC().Format(time.RFC3339)},
	}

	var listing struct {
		Items []models.Event `json:"items"`
	}
	if err := s.do(ctx, http.MethodGet, s.eventsURL("", query), nil, &listing); err != nil {
		return nil, err
	}
	return listing.Items, nil
}

// Get fetches one event by id.
func (s *Service) Get(ctx context.Context, eventID string) (models.Event, error) {
	var event models.Event
	err := s.do(ctx, http.MethodGet, s.eventsURL(eventID, nil), nil, &event)
	return event, err
}

// Insert creates an event and returns the stored representation.
func (s *Service) Insert(ctx context.Context, event models.Event) (models.Event, error) {
	query := url.Values{"sendUpdates": {"all"}}

	var created models.Event
	if err := s.do(ctx, http.MethodPost, s.eventsURL("", query), event, &created); err != nil {
		return models.Event{}, err
	}
	s.logger.Info("Calendar event created",
		zap.String("event_id", created.ID),
		zap.String("summary", created.Summary))
	return created, nil
}

// Update replaces the full event body and returns the stored representation.
func (s *Service) Update(ctx context.Context, eventID string, event models.Event) (models.Event, error) {
	query := url.Values{"sendUpdates": {"all"}}

	var updated models.Event
	if err := s.do(ctx, http.MethodPut, s.eventsURL(eventID, query), event, &updated); err != nil {
		return models.Event{}, err
	}
	s.logger.Info("Calendar event updated",
		zap.String("event_id", updated.ID),
		zap.String("summary", updated.Summary))
	return updated, nil
}

// Modify fetches the current event, merges the patch field-wise into it and
// writes the merged body back. The read-merge-write keeps fields the patch
// does not mention intact.
func (s *Service) Modify(ctx context.Context, eventID string, patch models.EventPatch) (models.Event, error) {
	current, err := s.Get(ctx, eventID)
	if err != nil {
		return models.Event{}, err
	}
	return s.Update(ctx, eventID, mergeEvent(current, patch))
}

func (s *Service) eventsURL(eventID string, query url.Values) string {
	u := fmt.Sprintf("%s/calendars/%s/events", s.baseURL, url.PathEscape(s.calendarID))
	if eventID != "" {
		u += "/" + url.PathEscape(eventID)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (s *Service) do(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// APIError is a non-2xx answer from the calendar API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calendar api: %d %s", e.StatusCode, e.Message)
}

func parseAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := string(raw)
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Message != "" {
		message = payload.Error.Message
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}
