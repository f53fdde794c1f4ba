/*
Package flow provides the declarative builder and the validated graph for
conversation flows.

A flow is a directed graph of domain.Node values keyed by ID. Construction is
pure: building a graph performs no I/O, and building the same flow twice
yields independent graphs with identical static content. The graph need not
be acyclic; revision transitions may point back to earlier nodes.

# Usage

	g, err := flow.New("greeting").
		Add("greeting").
		Label("Greeting").
		Prompt("Greet the borrower and confirm identity.").
		Transition("confirm_identity", "The borrower confirms they are the account holder.").
		To("overdue_info").
		Handle(func(args domain.Args, s *domain.Session) (string, string, error) {
			s.Set("identity_confirmed", "true")
			return "identity confirmed", "overdue_info", nil
		}).
		Build()
*/
package flow
