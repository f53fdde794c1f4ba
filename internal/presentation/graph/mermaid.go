// Package graph renders the conversation flow as a Mermaid flowchart for
// docs and dashboard embedding.
package graph

import (
	"fmt"
	"strings"

	"github.com/quickfin/loanvoice/pkg/flow"
)

// Overlay contains dynamic session state to visualize on the graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart from the flow graph.
// Shapes carry the semantics:
// - Entry: ((Circle))
// - Terminal: [[Subroutine]]
// - Default: [Rectangle]
// Edges are labeled with transition names; a transition with several
// annotated targets draws one edge per target. Overlay styles mark visited
// and current nodes.
func GenerateMermaid(g *flow.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes() {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.ID == g.Entry():
			opener, closer = "((", "))"
		case node.EndsConversation():
			opener, closer = "[[", "]]"
		}

		label := node.Label
		if label == "" {
			label = node.ID
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		for _, t := range node.Transitions {
			safeName := strings.ReplaceAll(t.Name, "\"", "'")
			for _, target := range t.Targets {
				safeTo := sanitizeMermaidID(target)
				arrow := fmt.Sprintf("-- \"%s\" -->", safeName)
				sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, safeTo))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for high contrast regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

// Flowchart keywords cannot be used as node IDs.
var mermaidReserved = map[string]string{
	"end":      "end_",
	"subgraph": "subgraph_",
	"graph":    "graph_",
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if safe, ok := mermaidReserved[strings.ToLower(s)]; ok {
		return safe
	}
	return s
}
