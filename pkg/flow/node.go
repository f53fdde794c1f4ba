package flow

import "github.com/quickfin/loanvoice/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Label sets the human-readable display label.
func (n *NodeBuilder) Label(label string) *NodeBuilder {
	n.node.Label = label
	return n
}

// Prompt sets the instructions for what the spoken turn should say or ask.
func (n *NodeBuilder) Prompt(prompt string) *NodeBuilder {
	n.node.Prompt = prompt
	return n
}

// End marks the node as a conversation terminal.
func (n *NodeBuilder) End() *NodeBuilder {
	n.node.PostActions = append(n.node.PostActions, domain.PostActionEndConversation)
	return n
}

// Transition opens a transition declaration on this node.
func (n *NodeBuilder) Transition(name, description string) *TransitionBuilder {
	return &TransitionBuilder{
		node: n,
		t: domain.Transition{
			Name:        name,
			Description: description,
		},
	}
}

// Add delegates to the parent builder so node declarations chain naturally.
func (n *NodeBuilder) Add(id string) *NodeBuilder {
	return n.builder.Add(id)
}

// Build delegates to the parent builder.
func (n *NodeBuilder) Build() (*Graph, error) {
	return n.builder.Build()
}

// MustBuild delegates to the parent builder.
func (n *NodeBuilder) MustBuild() *Graph {
	return n.builder.MustBuild()
}

// TransitionBuilder configures one transition; Handle seals it onto the node.
type TransitionBuilder struct {
	node *NodeBuilder
	t    domain.Transition
}

// Param declares an optional string parameter.
func (tb *TransitionBuilder) Param(name, description string) *TransitionBuilder {
	return tb.param(name, description, false)
}

// Required declares a required string parameter. Invoking the transition
// without it is a hard error.
func (tb *TransitionBuilder) Required(name, description string) *TransitionBuilder {
	return tb.param(name, description, true)
}

func (tb *TransitionBuilder) param(name, description string, required bool) *TransitionBuilder {
	if tb.t.Params == nil {
		tb.t.Params = make(map[string]domain.Param)
	}
	tb.t.Params[name] = domain.Param{
		Type:        domain.ParamString,
		Description: description,
		Required:    required,
	}
	return tb
}

// To annotates the node IDs the handler may return, for validation and
// visualization.
func (tb *TransitionBuilder) To(targets ...string) *TransitionBuilder {
	tb.t.Targets = append(tb.t.Targets, targets...)
	return tb
}

// Handle sets the handler and seals the transition onto its node.
func (tb *TransitionBuilder) Handle(h domain.Handler) *NodeBuilder {
	tb.t.Handler = h
	tb.node.node.Transitions = append(tb.node.node.Transitions, tb.t)
	return tb.node
}

// GoTo is shorthand for a handler that writes nothing and always moves to
// the single annotated target.
func (tb *TransitionBuilder) GoTo(target, narration string) *NodeBuilder {
	tb.t.Targets = append(tb.t.Targets, target)
	return tb.Handle(func(domain.Args, *domain.Session) (string, string, error) {
		return narration, target, nil
	})
}
