package validate

import "github.com/vk/araknidgo/internal/graph"

// ValidatedGraph is the proof-carrying result of a clean validation run.
// Only Validate constructs one, so code generation can never run over an
// unchecked graph.
type ValidatedGraph struct {
	g         *graph.Graph
	reachable map[graph.BlockID]bool
}

// Graph returns the underlying (snapshot) graph.
func (v *ValidatedGraph) Graph() *graph.Graph {
	return v.g
}

// Reachable reports whether a block survives into generation. Unreachable
// blocks validate with a warning but are excluded from output.
func (v *ValidatedGraph) Reachable(id graph.BlockID) bool {
	return v.reachable[id]
}
