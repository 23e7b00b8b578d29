package agent

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that no upcoming event matched a requested name.
var ErrNotFound = errors.New("event not found")

// CollaboratorError wraps a failure of an external dependency so callers
// can tell which one misbehaved.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// MalformedExtractionError reports that the LLM's structured output could
// not be used. Raw preserves the model's answer for the logs.
type MalformedExtractionError struct {
	Raw string
	Err error
}

func (e *MalformedExtractionError) Error() string {
	return fmt.Sprintf("malformed extraction: %v", e.Err)
}

func (e *MalformedExtractionError) Unwrap() error { return e.Err }

// AmbiguousCommandError reports that a heuristic parser could not pull the
// required parameters out of the message. Usage is the reply sent back.
type AmbiguousCommandError struct {
	Usage string
}

func (e *AmbiguousCommandError) Error() string {
	return fmt.Sprintf("ambiguous command: %s", e.Usage)
}
