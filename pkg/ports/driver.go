package ports

import (
	"context"

	"github.com/quickfin/loanvoice/pkg/domain"
)

// Decision is the driver's verdict for one user utterance.
type Decision struct {
	// Say is the text the agent should speak next.
	Say string

	// Transition is the chosen transition name, or empty when the driver
	// decided to stay on the current node (e.g. the borrower asked a
	// clarifying question).
	Transition string

	// Args are the argument values for the chosen transition.
	Args domain.Args
}

// Driver is the external decision oracle. Given the current node's view
// (prompt plus available transitions), the conversation so far, and the
// latest transcribed utterance, it chooses at most one transition to invoke.
// The driver is constrained to the transitions present in the view.
//
// history holds the conversation up to but not including utterance; the
// driver appends the utterance to the request itself, so callers must not
// include it in history.
type Driver interface {
	Decide(ctx context.Context, view domain.View, history []domain.Message, utterance string) (Decision, error)
}
