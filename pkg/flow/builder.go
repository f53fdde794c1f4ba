package flow

import (
	"fmt"

	"github.com/quickfin/loanvoice/pkg/domain"
)

// Builder manages graph construction.
type Builder struct {
	entry string
	nodes map[string]*NodeBuilder
	order []string
}

// New creates a graph builder with the given entry node ID.
func New(entry string) *Builder {
	return &Builder{
		entry: entry,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the graph. If the node already exists, it
// returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Build compiles and validates the graph.
func (b *Builder) Build() (*Graph, error) {
	g := &Graph{
		entry: b.entry,
		nodes: make(map[string]domain.Node, len(b.nodes)),
	}
	for _, id := range b.order {
		g.nodes[id] = b.nodes[id].node
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// MustBuild is Build for statically declared flows whose integrity is
// covered by tests. It panics on validation failure.
func (b *Builder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("flow: invalid graph: %v", err))
	}
	return g
}
