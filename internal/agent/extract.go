package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/calbot/internal/llm"
	"github.com/xaenox/calbot/internal/models"
)

const extractionPrompt = `RESPOND WITH RAW JSON ONLY. NO CODE BLOCKS. NO MARKDOWN.
Example:
{
    "summary": "Event title here",
    "start_time": "2025-02-21T12:00:00-05:00",
    "location": "Location here"
}`

// Extractor turns free-form event requests into structured commands via a
// constrained LLM call.
type Extractor struct {
	llm    llm.Client
	logger *zap.Logger
}

func NewExtractor(client llm.Client, logger *zap.Logger) *Extractor {
	return &Extractor{llm: client, logger: logger}
}

// ExtractCreateEvent asks the model for the event fields buried in text.
// The model's answer must be a bare JSON object; stray code fences are
// tolerated and stripped.
func (e *Extractor) ExtractCreateEvent(ctx context.Context, text string) (models.CreateEventCmd, error) {
	turns := []models.Turn{
		{Role: models.RoleSystem, Content: extractionPrompt},
		{Role: models.RoleUser, Content: "Create this event: " + text},
	}

	answer, err := e.llm.Complete(ctx, turns)
	if err != nil {
		return models.CreateEventCmd{}, &CollaboratorError{Collaborator: "llm", Err: err}
	}

	cleaned := stripCodeFence(strings.TrimSpace(answer))

	var cmd models.CreateEventCmd
	if err := json.Unmarshal([]byte(cleaned), &cmd); err != nil {
		e.logger.Error("Failed to parse extraction response",
			zap.Error(err),
			zap.String("response", answer))
		return models.CreateEventCmd{}, &MalformedExtractionError{Raw: answer, Err: err}
	}
	if cmd.Summary == "" || cmd.StartTime == "" {
		return models.CreateEventCmd{}, &MalformedExtractionError{
			Raw: answer,
			Err: errors.New("missing summary or start_time"),
		}
	}
	return cmd, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, '\n'); i >= 0 && strings.HasPrefix(strings.TrimSpace(s[i+1:]), "```") {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// resolveEventTimes normalizes extracted start/end strings into concrete
// times in the user's zone. "tomorrow" anywhere in the start means
// tomorrow at noon; a missing end means one hour after the start.
func resolveEventTimes(cmd models.CreateEventCmd, now time.Time, tz *time.Location) (time.Time, time.Time, error) {
	var start time.Time
	if strings.Contains(strings.ToLower(cmd.StartTime), "tomorrow") {
		tomorrow := now.In(tz).AddDate(0, 0, 1)
		start = time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 12, 0, 0, 0, tz)
	} else {
		parsed, err := parseFlexibleTime(cmd.StartTime, tz)
		if err != nil {
			return time.Time{}, time.Time{}, &MalformedExtractionError{Raw: cmd.StartTime, Err: err}
		}
		start = parsed
	}

	if cmd.EndTime == "" {
		return start, start.Add(time.Hour), nil
	}
	end, err := parseFlexibleTime(cmd.EndTime, tz)
	if err != nil {
		return time.Time{}, time.Time{}, &MalformedExtractionError{Raw: cmd.EndTime, Err: err}
	}
	return start, end, nil
}

// parseFlexibleTime accepts RFC 3339 and, for models that omit the offset,
// a bare local timestamp interpreted in tz.
func parseFlexibleTime(raw string, tz *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(tz), nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", raw, tz)
}

// ParsePostpone reads "postpone <event> [N hours]" style messages. The
// token after "postpone" names the event; a number directly before
// "hour"/"hours" sets the shift, defaulting to one.
func ParsePostpone(text string) (models.PostponeCmd, error) {
	fields := strings.Fields(text)
	cmd := models.PostponeCmd{Hours: 1}

	for i, field := range fields {
		switch strings.ToLower(field) {
		case "postpone":
			if i+1 < len(fields) {
				cmd.EventName = fields[i+1]
			}
		case "hour", "hours":
			if i > 0 {
				if n, err := strconv.Atoi(fields[i-1]); err == nil && n >= 0 {
					cmd.Hours = n
				}
			}
		}
	}

	if cmd.EventName == "" {
		return models.PostponeCmd{}, &AmbiguousCommandError{
			Usage: "Please specify which event to postpone.",
		}
	}
	return cmd, nil
}

// ParseUpdateLocation reads "update location of <event> to <place>" style
// messages, also accepting "change location of" and the "at" connector.
// Keyword matching is case-insensitive but the extracted values keep the
// user's casing.
func ParseUpdateLocation(text string) (models.UpdateLocationCmd, error) {
	lower := strings.ToLower(text)

	rest := ""
	for _, phrase := range []string{"update location of", "change location of"} {
		if idx := strings.Index(lower, phrase); idx >= 0 {
			rest = text[idx+len(phrase):]
			break
		}
	}
	if rest == "" {
		return models.UpdateLocationCmd{}, &AmbiguousCommandError{
			Usage: "Please use format: update location of [event name] to [new location]",
		}
	}

	restLower := strings.ToLower(rest)
	for _, sep := range []string{" to ", " at "} {
		idx := strings.Index(restLower, sep)
		if idx < 0 {
			continue
		}
		cmd := models.UpdateLocationCmd{
			EventName:   strings.TrimSpace(rest[:idx]),
			NewLocation: strings.TrimSpace(rest[idx+len(sep):]),
		}
		if cmd.EventName == "" || cmd.NewLocation == "" {
			return models.UpdateLocationCmd{}, &AmbiguousCommandError{
				Usage: "Please specify both the event name and new location.",
			}
		}
		return cmd, nil
	}

	return models.UpdateLocationCmd{}, &AmbiguousCommandError{
		Usage: "Please specify the new location using 'to' or 'at'",
	}
}

// ParseUpdateAttendees reads "add attendee <event> to <emails...>" style
// messages: the event name spans from the third token to the first
// "to"/"for", and every later token containing "@" is an address.
func ParseUpdateAttendees(text string) (models.UpdateAttendeesCmd, error) {
	fields := strings.Fields(text)

	for i := 2; i < len(fields); i++ {
		lower := strings.ToLower(fields[i])
		if lower != "to" && lower != "for" {
			continue
		}

		cmd := models.UpdateAttendeesCmd{
			EventName: strings.Join(fields[2:i], " "),
		}
		for _, field := range fields[i+1:] {
			if strings.Contains(field, "@") {
				cmd.Emails = append(cmd.Emails, field)
			}
		}
		if cmd.EventName == "" || len(cmd.Emails) == 0 {
			break
		}
		return cmd, nil
	}

	return models.UpdateAttendeesCmd{}, &AmbiguousCommandError{
		Usage: "Please specify the event name and attendee email addresses.",
	}
}
