package domain

// PostAction is a declarative effect executed when a node becomes current.
type PostAction string

const (
	// PostActionEndConversation marks the node as a terminal stage: the host
	// should speak the node's prompt and then tear down the call.
	PostActionEndConversation PostAction = "end_conversation"
)

// Node represents a single stage of the scripted conversation.
// Nodes are value objects keyed by ID; the graph may be cyclic.
type Node struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`

	// Prompt instructs the driver what the spoken turn should say or ask.
	Prompt string `json:"prompt" yaml:"prompt"`

	// Transitions are the paths the driver may take from this node,
	// in declaration order.
	Transitions []Transition `json:"transitions" yaml:"transitions"`

	// PostActions are executed by the host when the node becomes current.
	PostActions []PostAction `json:"post_actions,omitempty" yaml:"post_actions,omitempty"`
}

// Transition returns the transition with the given name, if declared on this
// node. Transition names are scoped per node, not globally.
func (n Node) Transition(name string) (Transition, bool) {
	for _, t := range n.Transitions {
		if t.Name == name {
			return t, true
		}
	}
	return Transition{}, false
}

// Terminal reports whether the node has no outgoing transitions.
func (n Node) Terminal() bool {
	return len(n.Transitions) == 0
}

// EndsConversation reports whether entering this node ends the call.
func (n Node) EndsConversation() bool {
	for _, a := range n.PostActions {
		if a == PostActionEndConversation {
			return true
		}
	}
	return false
}

// View is the contract exposed to the decision driver: the current node's
// prompt plus the transitions it is allowed to choose from. Handlers are
// deliberately absent.
type View struct {
	NodeID      string           `json:"node_id"`
	Prompt      string           `json:"prompt"`
	Transitions []TransitionView `json:"transitions"`
}

// TransitionView describes one invocable transition to the driver.
type TransitionView struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Params      map[string]Param `json:"params,omitempty"`
}

// ViewOf builds the driver-facing view of a node.
func ViewOf(n Node) View {
	v := View{
		NodeID:      n.ID,
		Prompt:      n.Prompt,
		Transitions: make([]TransitionView, 0, len(n.Transitions)),
	}
	for _, t := range n.Transitions {
		v.Transitions = append(v.Transitions, TransitionView{
			Name:        t.Name,
			Description: t.Description,
			Params:      t.Params,
		})
	}
	return v
}
