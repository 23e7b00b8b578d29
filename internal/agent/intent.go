package agent

import (
	"strings"

	"github.com/xaenox/calbot/internal/models"
)

// locationQueries are matched whole: "where" alone asks for the location,
// "where is the meeting" does not.
var locationQueries = []string{
	"what is my location",
	"where am i",
	"what's my location",
	"where",
	"location",
	"what is my current location",
	"tell me my location",
}

var creationPhrases = []string{
	"schedule a",
	"create event",
	"add meeting",
	"new appointment",
}

type intentRule struct {
	intent models.Intent
	match  func(msg string) bool
}

// intentRules is evaluated top to bottom; the first hit wins, so the narrow
// whole-message matches sit above the substring ones.
var intentRules = []intentRule{
	{models.IntentLocationQuery, func(msg string) bool { return matchesAny(msg, locationQueries) }},
	{models.IntentReset, func(msg string) bool { return msg == "forget" || msg == "reset" }},
	{models.IntentCreateEvent, func(msg string) bool { return containsAny(msg, creationPhrases) }},
	{models.IntentPostpone, func(msg string) bool { return strings.Contains(msg, "postpone") }},
	{models.IntentUpdateLocation, func(msg string) bool {
		return containsAny(msg, []string{"update location", "change location"})
	}},
	{models.IntentUpdateAttendees, func(msg string) bool {
		return containsAny(msg, []string{"add attendee", "invite"})
	}},
}

// Classify maps a raw message to an intent. It is deterministic and total:
// anything no rule claims is general chat.
func Classify(text string) models.Intent {
	msg := strings.ToLower(strings.TrimSpace(text))
	for _, rule := range intentRules {
		if rule.match(msg) {
			return rule.intent
		}
	}
	return models.IntentGeneralChat
}

func matchesAny(msg string, phrases []string) bool {
	for _, phrase := range phrases {
		if msg == phrase {
			return true
		}
	}
	return false
}

func containsAny(msg string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
