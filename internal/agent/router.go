package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/calbot/internal/llm"
	"github.com/xaenox/calbot/internal/memory"
	"github.com/xaenox/calbot/internal/metrics"
	"github.com/xaenox/calbot/internal/models"
)

const systemPrompt = `You are a helpful assistant with access to my calendar and location information.
When responding to location queries, return the exact formatted location details provided without reformatting.
For other queries, provide helpful and concise responses.`

// Deps are the collaborators a Router needs. Weather and Travel may be nil
// when their API keys are not configured; everything else is required.
type Deps struct {
	LLM      llm.Client
	Calendar Calendar
	Memory   *memory.Store
	Location LocationSource
	Weather  Weather
	Travel   Travel
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Now      func() time.Time
}

// Router classifies each incoming message and executes the matching
// operation. One user's turns run strictly one at a time; different users
// proceed in parallel. Handle always returns reply text, never an error:
// failures become replies.
type Router struct {
	llm       llm.Client
	calendar  Calendar
	memory    *memory.Store
	location  LocationSource
	extractor *Extractor
	resolver  *Resolver
	assembler *Assembler
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func New(deps Deps) *Router {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Router{
		llm:       deps.LLM,
		calendar:  deps.Calendar,
		memory:    deps.Memory,
		location:  deps.Location,
		extractor: NewExtractor(deps.LLM, deps.Logger),
		resolver:  NewResolver(deps.Calendar),
		assembler: NewAssembler(deps.Location, deps.Weather, deps.Travel, deps.Calendar,
			deps.Metrics, deps.Logger),
		metrics: deps.Metrics,
		logger:  deps.Logger,
		now:     deps.Now,
	}
}

// Handle processes one message for one user and returns the reply.
func (r *Router) Handle(ctx context.Context, userID, text string) string {
	logger := r.logger.With(
		zap.String("turn_id", uuid.New().String()),
		zap.String("user_id", userID))

	release := r.memory.Acquire(userID)
	defer release()

	ctx = llm.WithUser(ctx, userID)

	intent := Classify(text)
	r.metrics.MessageRouted(intent)
	logger.Info("Message routed", zap.String("intent", string(intent)))

	switch intent {
	case models.IntentLocationQuery:
		return r.location.Details(ctx)
	case models.IntentReset:
		r.memory.Clear(userID)
		return "I've reset our conversation history."
	case models.IntentCreateEvent:
		return r.handleCreateEvent(ctx, logger, text)
	case models.IntentPostpone:
		return r.handlePostpone(ctx, logger, text)
	case models.IntentUpdateLocation:
		return r.handleUpdateLocation(ctx, logger, text)
	case models.IntentUpdateAttendees:
		return r.handleUpdateAttendees(ctx, logger, text)
	default:
		return r.handleGeneralChat(ctx, logger, userID, text)
	}
}

func (r *Router) handleCreateEvent(ctx context.Context, logger *zap.Logger, text string) string {
	cmd, err := r.extractor.ExtractCreateEvent(ctx, text)
	if err != nil {
		logger.Warn("Event extraction failed", zap.Error(err))
		r.noteFailure(err)
		return "Failed to create event: " + err.Error()
	}

	start, end, err := resolveEventTimes(cmd, r.now(), r.location.Timezone())
	if err != nil {
		logger.Warn("Event time resolution failed", zap.Error(err))
		return "Failed to create event: " + err.Error()
	}

	tzName := r.location.Timezone().String()
	event := models.Event{
		Summary:  cmd.Summary,
		Location: cmd.Location,
		Start:    models.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: tzName},
		End:      models.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: tzName},
	}

	created, err := r.calendar.Insert(ctx, event)
	if err != nil {
		logger.Error("Event insert failed", zap.Error(err))
		r.metrics.CollaboratorFailure("calendar")
		return "Failed to create event: " + err.Error()
	}

	// Read the event back: a write that cannot be read back is not a
	// success worth announcing.
	verified, err := r.calendar.Get(ctx, created.ID)
	if err != nil {
		logger.Error("Event verification failed",
			zap.String("event_id", created.ID),
			zap.Error(err))
		r.metrics.CollaboratorFailure("calendar")
		return "Failed to create event: " + err.Error()
	}
	if verified.ID == "" {
		return "Event creation failed verification"
	}

	logger.Info("Event created",
		zap.String("event_id", verified.ID),
		zap.String("summary", verified.Summary))
	return "✅ Event created!\nEvent created successfully: " + verified.HTMLLink
}

func (r *Router) handlePostpone(ctx context.Context, logger *zap.Logger, text string) string {
	cmd, err := ParsePostpone(text)
	if err != nil {
		return replyForParseError(err, "Failed to postpone event")
	}

	event, err := r.resolver.FindByName(ctx, cmd.EventName)
	if err != nil {
		return r.resolveFailureReply(logger, err, cmd.EventName, "Failed to postpone event")
	}
	if event.Start.DateTime == "" || event.End.DateTime == "" {
		return "Failed to postpone event: event has no scheduled time"
	}

	start, err := time.Parse(time.RFC3339, event.Start.DateTime)
	if err != nil {
		return "Failed to postpone event: " + err.Error()
	}
	end, err := time.Parse(time.RFC3339, event.End.DateTime)
	if err != nil {
		return "Failed to postpone event: " + err.Error()
	}

	shift := time.Duration(cmd.Hours) * time.Hour
	tz := r.location.Timezone()
	tzName := tz.String()
	patch := models.EventPatch{
		Start: &models.EventDateTime{
			DateTime: start.Add(shift).In(tz).Format(time.RFC3339),
			TimeZone: tzName,
		},
		End: &models.EventDateTime{
			DateTime: end.Add(shift).In(tz).Format(time.RFC3339),
			TimeZone: tzName,
		},
	}

	updated, err := r.calendar.Modify(ctx, event.ID, patch)
	if err != nil {
		logger.Error("Event postpone failed", zap.Error(err))
		r.metrics.CollaboratorFailure("calendar")
		return "Failed to postpone event: " + err.Error()
	}

	return fmt.Sprintf("Event '%s' postponed by %d hours.\nEvent updated successfully: %s",
		cmd.EventName, cmd.Hours, updated.HTMLLink)
}

func (r *Router) handleUpdateLocation(ctx context.Context, logger *zap.Logger, text string) string {
	cmd, err := ParseUpdateLocation(text)
	if err != nil {
		return replyForParseError(err, "Failed to update event location")
	}

	event, err := r.resolver.FindByName(ctx, cmd.EventName)
	if err != nil {
		return r.resolveFailureReply(logger, err, cmd.EventName, "Failed to update event location")
	}

	updated, err := r.calendar.Modify(ctx, event.ID, models.EventPatch{Location: &cmd.NewLocation})
	if err != nil {
		logger.Error("Event location update failed", zap.Error(err))
		r.metrics.CollaboratorFailure("calendar")
		return "Failed to update event location: " + err.Error()
	}

	return fmt.Sprintf("Updated location for '%s' to: %s\nEvent updated successfully: %s",
		cmd.EventName, cmd.NewLocation, updated.HTMLLink)
}

func (r *Router) handleUpdateAttendees(ctx context.Context, logger *zap.Logger, text string) string {
	cmd, err := ParseUpdateAttendees(text)
	if err != nil {
		return replyForParseError(err, "Failed to update event attendees")
	}

	event, err := r.resolver.FindByName(ctx, cmd.EventName)
	if err != nil {
		return r.resolveFailureReply(logger, err, cmd.EventName, "Failed to update event attendees")
	}

	merged := mergeAttendees(event.Attendees, cmd.Emails)
	updated, err := r.calendar.Modify(ctx, event.ID, models.EventPatch{Attendees: merged})
	if err != nil {
		logger.Error("Event attendee update failed", zap.Error(err))
		r.metrics.CollaboratorFailure("calendar")
		return "Failed to update event attendees: " + err.Error()
	}

	return fmt.Sprintf("Updated attendees for '%s'\nNew attendees: %s\nEvent updated successfully: %s",
		cmd.EventName, strings.Join(cmd.Emails, ", "), updated.HTMLLink)
}

func (r *Router) handleGeneralChat(ctx context.Context, logger *zap.Logger, userID, text string) string {
	history := r.memory.History(userID)
	contextBlock := r.assembler.Build(ctx, text)

	turns := make([]models.Turn, 0, len(history)+2)
	turns = append(turns, models.Turn{Role: models.RoleSystem, Content: systemPrompt})
	turns = append(turns, history...)
	turns = append(turns, models.Turn{Role: models.RoleUser, Content: contextBlock + "\n" + text})

	started := time.Now()
	reply, err := r.llm.Complete(ctx, turns)
	r.metrics.LLMDuration(time.Since(started))
	if err != nil {
		logger.Error("Chat completion failed", zap.Error(err))
		r.metrics.CollaboratorFailure("llm")
		if errors.Is(err, llm.ErrRateLimited) {
			return "You're sending messages too quickly. Please wait a moment and try again."
		}
		return "Sorry, I couldn't get a response right now. Please try again."
	}

	// History records the user's words, not the assembled context, and
	// only once a reply exists: both turns land or neither does.
	r.memory.Append(userID,
		models.Turn{Role: models.RoleUser, Content: text},
		models.Turn{Role: models.RoleAssistant, Content: reply},
	)
	return reply
}

// resolveFailureReply renders resolver errors: a miss names the event, a
// calendar outage reports the failure.
func (r *Router) resolveFailureReply(logger *zap.Logger, err error, name, failurePrefix string) string {
	if errors.Is(err, ErrNotFound) {
		return fmt.Sprintf("Could not find event '%s'", name)
	}
	logger.Error("Event lookup failed", zap.Error(err))
	r.noteFailure(err)
	return failurePrefix + ": " + err.Error()
}

func replyForParseError(err error, failurePrefix string) string {
	var ambiguous *AmbiguousCommandError
	if errors.As(err, &ambiguous) {
		return ambiguous.Usage
	}
	return failurePrefix + ": " + err.Error()
}

// noteFailure attributes a wrapped collaborator error to its source.
func (r *Router) noteFailure(err error) {
	var collab *CollaboratorError
	if errors.As(err, &collab) {
		r.metrics.CollaboratorFailure(collab.Collaborator)
	}
}

// mergeAttendees appends the emails not already invited. Matching is
// case-insensitive so re-inviting someone never duplicates them.
func mergeAttendees(existing []models.Attendee, emails []string) []models.Attendee {
	merged := make([]models.Attendee, len(existing))
	copy(merged, existing)

	seen := make(map[string]struct{}, len(existing))
	for _, attendee := range existing {
		seen[strings.ToLower(attendee.Email)] = struct{}{}
	}
	for _, email := range emails {
		key := strings.ToLower(email)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, models.Attendee{Email: email})
	}
	return merged
}
