package domain

// ParamType enumerates the wire types a transition parameter may carry.
// The driver boundary is string-typed (spoken language in, text out), so
// string is currently the only type, kept as a named constant for schema
// clarity at the driver boundary.
type ParamType string

const (
	ParamString ParamType = "string"
)

// Param declares one input parameter of a transition.
type Param struct {
	Type        ParamType `json:"type" yaml:"type"`
	Description string    `json:"description" yaml:"description"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
}

// Args carries the argument values the driver supplies when invoking a
// transition.
type Args map[string]string

// Get returns the argument value, or fallback when absent or empty.
func (a Args) Get(key, fallback string) string {
	if v, ok := a[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Handler executes a transition: it may read and write the session state bag
// and must return a short human-readable narration of what happened plus the
// ID of the node that becomes current.
type Handler func(args Args, sess *Session) (narration string, next string, err error)

// Transition defines a rule to move the conversation from one node to
// another. The target node is computed by the handler at invocation time,
// which allows conditional branching (e.g. confirm vs. deny identity).
type Transition struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Params      map[string]Param `json:"params,omitempty" yaml:"params,omitempty"`

	// Targets annotates the node IDs the handler may return. It exists so
	// the graph can be validated and visualized without executing handlers.
	Targets []string `json:"targets,omitempty" yaml:"targets,omitempty"`

	Handler Handler `json:"-" yaml:"-"`
}

// RequiredParams returns the names of parameters declared required,
// in no particular order.
func (t Transition) RequiredParams() []string {
	var req []string
	for name, p := range t.Params {
		if p.Required {
			req = append(req, name)
		}
	}
	return req
}
