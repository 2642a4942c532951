package protocol

import (
	"errors"
	"fmt"

	"ConfidentialVoting/pkg/party"
)

var (
	// ErrPhase marks a message received outside the phase that expects it.
	ErrPhase = errors.New("message out of phase")
	// ErrMalformed marks a message missing a required field.
	ErrMalformed = errors.New("malformed message")
	// ErrSessionEnded is sent to connections arriving after tallying began.
	ErrSessionEnded = errors.New("session ended")
)

// Error is a custom error for the voting protocol which records the party
// responsible for the violation, when it can be known.
type Error struct {
	// Culprit is empty if the identity of the misbehaving party cannot be known.
	Culprit party.ID
	// Err is the underlying error.
	Err error
}

// Error implements error.
func (e Error) Error() string {
	if e.Culprit == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("culprit: %v: %s", e.Culprit, e.Err)
}

// Unwrap implements errors.Wrapper.
func (e Error) Unwrap() error {
	return e.Err
}
