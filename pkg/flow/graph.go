package flow

import (
	"fmt"
	"sort"

	"github.com/quickfin/loanvoice/pkg/domain"
)

// Graph is an immutable, validated conversation graph.
type Graph struct {
	entry string
	nodes map[string]domain.Node
}

// Entry returns the ID of the designated entry node.
func (g *Graph) Entry() string {
	return g.entry
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (domain.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by ID, for deterministic introspection.
func (g *Graph) Nodes() []domain.Node {
	out := make([]domain.Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// validate checks graph integrity over the static transition annotations.
// Handlers are never executed here.
func (g *Graph) validate() error {
	if g.entry == "" {
		return fmt.Errorf("flow: entry node not set")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("flow: entry node %q not declared", g.entry)
	}

	for id, n := range g.nodes {
		seen := make(map[string]bool, len(n.Transitions))
		for _, t := range n.Transitions {
			if t.Name == "" {
				return fmt.Errorf("flow: node %q has an unnamed transition", id)
			}
			if seen[t.Name] {
				return fmt.Errorf("flow: node %q declares transition %q twice", id, t.Name)
			}
			seen[t.Name] = true
			if t.Handler == nil {
				return fmt.Errorf("flow: transition %q on node %q has no handler", t.Name, id)
			}
			if len(t.Targets) == 0 {
				return fmt.Errorf("flow: transition %q on node %q declares no targets", t.Name, id)
			}
			for _, target := range t.Targets {
				if _, ok := g.nodes[target]; !ok {
					return fmt.Errorf("flow: transition %q on node %q targets unknown node %q", t.Name, id, target)
				}
			}
		}
		if n.Terminal() && !n.EndsConversation() {
			return fmt.Errorf("flow: terminal node %q does not end the conversation", id)
		}
	}

	return g.checkReachability()
}

// checkReachability walks the target annotations from the entry node and
// rejects graphs with unreachable nodes.
func (g *Graph) checkReachability() error {
	visited := map[string]bool{g.entry: true}
	queue := []string{g.entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, t := range g.nodes[id].Transitions {
			for _, target := range t.Targets {
				if !visited[target] {
					visited[target] = true
					queue = append(queue, target)
				}
			}
		}
	}
	for id := range g.nodes {
		if !visited[id] {
			return fmt.Errorf("flow: node %q is unreachable from entry %q", id, g.entry)
		}
	}
	return nil
}
