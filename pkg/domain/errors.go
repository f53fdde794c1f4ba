package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found.
// Registry updates treat it as a no-op; Invoke surfaces it as a hard error.
var ErrSessionNotFound = errors.New("session not found")

// InvalidTransitionError signals that a transition name is not declared on
// the session's current node. The session is left unchanged.
type InvalidTransitionError struct {
	NodeID     string
	Transition string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %q not available on node %q", e.Transition, e.NodeID)
}

// MissingArgumentError signals that a required transition parameter was
// absent from the invocation arguments. The session is left unchanged.
type MissingArgumentError struct {
	Transition string
	Param      string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("transition %q requires argument %q", e.Transition, e.Param)
}
