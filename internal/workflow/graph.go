package workflow

import (
	"fmt"
	"slices"
	"strings"
)

// steps lists every step in drawing order.
var steps = []Step{
	StepStart,
	StepGenerating,
	StepValidating,
	StepExecuting,
	StepCorrecting,
	StepFormatting,
	StepRejected,
	StepMaxRetriesExceeded,
	StepFatal,
}

// Edge is one row of the transition table.
type Edge struct {
	From  Step  `json:"from"`
	Event Event `json:"event"`
	To    Step  `json:"to"`
	// Conditional is set when From routes to more than one step on
	// outcomes other than cancellation.
	Conditional bool `json:"conditional"`
}

// Edges returns the transition table in drawing order.
func Edges() []Edge {
	var edges []Edge
	for _, from := range steps {
		out := transitions[from]
		branches := 0
		for ev := range out {
			if ev != EventCancelled {
				branches++
			}
		}
		start := len(edges)
		for ev, to := range out {
			edges = append(edges, Edge{
				From:        from,
				Event:       ev,
				To:          to,
				Conditional: branches > 1 && ev != EventCancelled,
			})
		}
		slices.SortFunc(edges[start:], func(a, b Edge) int {
			if c := slices.Index(steps, a.To) - slices.Index(steps, b.To); c != 0 {
				return c
			}
			return strings.Compare(string(a.Event), string(b.Event))
		})
	}
	return edges
}

// Mermaid renders the state machine as a Mermaid flowchart. Conditional
// and cancellation edges are dashed.
func Mermaid() string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")
	for _, s := range steps {
		if s.Terminal() {
			fmt.Fprintf(&b, "    %s([%s])\n", s, s)
		} else {
			fmt.Fprintf(&b, "    %s[%s]\n", s, s)
		}
	}
	for _, e := range Edges() {
		arrow := "-->"
		if e.Conditional || e.Event == EventCancelled {
			arrow = "-.->"
		}
		fmt.Fprintf(&b, "    %s %s|%s| %s\n", e.From, arrow, e.Event, e.To)
	}
	return b.String()
}

// DOT renders the state machine in Graphviz DOT.
func DOT() string {
	var b strings.Builder
	b.WriteString("digraph askql {\n")
	b.WriteString("    rankdir=LR;\n")
	b.WriteString("    node [shape=box, style=rounded];\n")
	for _, s := range steps {
		if s.Terminal() {
			fmt.Fprintf(&b, "    %q [shape=doubleoctagon];\n", s)
		}
	}
	for _, e := range Edges() {
		attrs := fmt.Sprintf("label=%q", e.Event)
		switch {
		case e.Event == EventCancelled:
			attrs += ", style=dotted, color=gray"
		case e.Conditional:
			attrs += ", style=dashed"
		}
		fmt.Fprintf(&b, "    %q -> %q [%s];\n", e.From, e.To, attrs)
	}
	b.WriteString("}\n")
	return b.String()
}
