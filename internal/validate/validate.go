// Package validate checks a graph snapshot for type errors, control-flow
// malformations, and missing inputs. A single call reports every issue it
// can find; a graph with zero errors (warnings permitted) yields a
// ValidatedGraph the generator will accept.
package validate

import (
	"context"
	"regexp"
	"slices"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/araknidgo/internal/catalog"
	"github.com/vk/araknidgo/internal/ctxlog"
	"github.com/vk/araknidgo/internal/diag"
	"github.com/vk/araknidgo/internal/graph"
)

// Validate runs all passes over the snapshot and either returns a
// ValidatedGraph or the full batch of diagnostics. Warnings are returned
// alongside a successful result.
func Validate(ctx context.Context, g *graph.Graph) (*ValidatedGraph, diag.Diagnostics) {
	logger := ctxlog.FromContext(ctx)
	var diags diag.Diagnostics

	typePass(g, &diags)
	reachable := controlPass(g, &diags)
	socketPass(g, reachable, &diags)

	if diags.HasErrors() {
		logger.Debug("Validation failed.", "errors", len(diags.Errors()), "total", len(diags))
		return nil, diags
	}
	logger.Debug("Validation passed.", "blocks", g.Len(), "warnings", len(diags))
	return &ValidatedGraph{g: g, reachable: reachable}, diags
}

// identRE is what a declared variable name must look like.
var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// typePass checks every data edge for socket type compatibility, every
// literal for convertibility to its socket's type, and rejects cycles in the
// data-edge relation (an expression cannot feed itself).
func typePass(g *graph.Graph, diags *diag.Diagnostics) {
	for _, e := range g.DataEdges() {
		src, ok := g.Block(e.Src)
		if !ok {
			continue
		}
		dst, ok := g.Block(e.Dst)
		if !ok {
			continue
		}
		outSock, ok := src.Kind.Socket(e.SrcSocket)
		if !ok {
			continue
		}
		inSock, ok := dst.Kind.Socket(e.DstSocket)
		if !ok {
			continue
		}
		if !catalog.Compatible(outSock.Type, inSock.Type) {
			diags.Errorf(diag.Anchor{Block: e.Dst, Socket: e.DstSocket},
				"type mismatch: %s output %q (%s) cannot feed %s input %q (%s)",
				src.Kind.ID, e.SrcSocket, outSock.Type, dst.Kind.ID, e.DstSocket, inSock.Type)
		}
	}

	for _, id := range g.BlockIDs() {
		b, _ := g.Block(id)
		for _, sock := range b.Kind.Inputs() {
			val, ok := b.Literal(sock.Name)
			if !ok {
				continue
			}
			checkLiteral(id, &sock, val, diags)
		}
	}

	dataCyclePass(g, diags)
}

func checkLiteral(id graph.BlockID, sock *catalog.Socket, val cty.Value, diags *diag.Diagnostics) {
	anchor := diag.Anchor{Block: id, Socket: sock.Name}
	want := sock.Type.CtyType()

	converted := val
	if want != cty.DynamicPseudoType {
		var err error
		converted, err = convert.Convert(val, want)
		if err != nil {
			diags.Errorf(anchor, "literal is not a %s: %v", sock.Type, err)
			return
		}
	}

	switch sock.Type {
	case catalog.TypeInt:
		if bf := converted.AsBigFloat(); !bf.IsInt() {
			diags.Errorf(anchor, "literal %s is not a whole number", bf.Text('g', -1))
			return
		}
	case catalog.TypeChar:
		if len([]rune(converted.AsString())) != 1 {
			diags.Errorf(anchor, "char literal must be exactly one character")
			return
		}
	}

	if len(sock.Choices) > 0 {
		if converted.Type() != cty.String || !slices.Contains(sock.Choices, converted.AsString()) {
			diags.Errorf(anchor, "literal must be one of %v", sock.Choices)
			return
		}
	}

	if sock.Declares {
		if converted.Type() != cty.String || !identRE.MatchString(converted.AsString()) {
			diags.Errorf(anchor, "declared name must be a valid C identifier")
		}
	}
}

// dataCyclePass rejects cyclic data-edge chains, which would otherwise send
// expression lowering into infinite recursion.
func dataCyclePass(g *graph.Graph, diags *diag.Diagnostics) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[graph.BlockID]int)

	var visit func(id graph.BlockID) bool
	visit = func(id graph.BlockID) bool {
		switch state[id] {
		case visiting:
			diags.Errorf(diag.Anchor{Block: id}, "data edges form a cycle through this block")
			return false
		case done:
			return true
		}
		state[id] = visiting
		for _, e := range g.DataSources(id) {
			if !visit(e.Src) {
				break
			}
		}
		state[id] = done
		return true
	}

	for _, id := range g.BlockIDs() {
		visit(id)
	}
}

// controlPass walks control flow from the entry block. It reports cycles in
// non-loop chains, unmet required arms, successors that cannot be statements,
// blocks with more than one predecessor, and break/continue outside a loop.
// It returns the set of blocks that generation will consider: everything
// control-reachable plus the expressions feeding them through data edges.
func controlPass(g *graph.Graph, diags *diag.Diagnostics) map[graph.BlockID]bool {
	reachable := make(map[graph.BlockID]bool)

	entry, hasEntry := g.Entry()
	if !hasEntry {
		if g.Len() > 0 {
			diags.Errorf(diag.Anchor{}, "graph has no entry block")
		}
		markDataClosure(g, reachable)
		warnUnreachable(g, reachable, diags)
		return reachable
	}

	if b, ok := g.Block(entry); ok && b.Kind.Shape == catalog.ShapeNone {
		diags.Errorf(diag.Anchor{Block: entry}, "entry block %s is an expression, not a statement", b.Kind.ID)
		markDataClosure(g, reachable)
		warnUnreachable(g, reachable, diags)
		return reachable
	}

	onPath := make(map[graph.BlockID]bool)
	visited := make(map[graph.BlockID]bool)
	backEdges := make(map[graph.ControlEdge]bool)
	var loopStack []graph.BlockID

	var walk func(id graph.BlockID)
	walk = func(id graph.BlockID) {
		b, ok := g.Block(id)
		if !ok {
			return
		}
		visited[id] = true
		reachable[id] = true
		onPath[id] = true
		defer func() { onPath[id] = false }()

		if b.Kind.RequiresLoop && len(loopStack) == 0 {
			diags.Errorf(diag.Anchor{Block: id}, "%s is only allowed inside a loop body", b.Kind.ID)
		}

		for _, port := range b.Kind.Ports() {
			target, connected := g.ControlTarget(id, port)
			if !connected {
				if arm, isArm := b.Kind.ArmSpec(port); isArm && arm.Required {
					diags.Errorf(diag.Anchor{Block: id, Port: port}, "required %q arm is not connected", port)
				}
				continue
			}

			tb, ok := g.Block(target)
			if !ok {
				continue
			}
			if tb.Kind.Shape == catalog.ShapeNone {
				diags.Errorf(diag.Anchor{Block: id, Port: port},
					"control port cannot target expression block %s", tb.Kind.ID)
				continue
			}

			if onPath[target] {
				// A chain inside a loop body legitimately ends by pointing
				// back at the loop that owns it. Anything else is a cycle.
				if slices.Contains(loopStack, target) {
					backEdges[graph.ControlEdge{Src: id, Port: port, Dst: target}] = true
				} else {
					diags.Errorf(diag.Anchor{Block: target}, "non-loop control chain forms a cycle through this block")
				}
				continue
			}
			if visited[target] {
				continue
			}

			if port == catalog.PortBody {
				loopStack = append(loopStack, id)
				walk(target)
				loopStack = loopStack[:len(loopStack)-1]
			} else {
				walk(target)
			}
		}
	}
	walk(entry)

	// A linear block reached by two control edges would be emitted twice.
	// A body chain's back-edge onto its loop is not a second emission and
	// does not count.
	for _, id := range g.BlockIDs() {
		preds := 0
		for _, e := range g.ControlPreds(id) {
			if !backEdges[e] {
				preds++
			}
		}
		if preds > 1 {
			diags.Errorf(diag.Anchor{Block: id}, "block has %d control predecessors; it may appear only once in the flow", preds)
		}
	}

	markDataClosure(g, reachable)
	warnUnreachable(g, reachable, diags)
	return reachable
}

// markDataClosure extends the reachable set with every expression block that
// transitively feeds a reachable block through data edges.
func markDataClosure(g *graph.Graph, reachable map[graph.BlockID]bool) {
	for changed := true; changed; {
		changed = false
		for _, e := range g.DataEdges() {
			if reachable[e.Dst] && !reachable[e.Src] {
				reachable[e.Src] = true
				changed = true
			}
		}
	}
}

func warnUnreachable(g *graph.Graph, reachable map[graph.BlockID]bool, diags *diag.Diagnostics) {
	for _, id := range g.BlockIDs() {
		if !reachable[id] {
			b, _ := g.Block(id)
			diags.Warnf(diag.Anchor{Block: id}, "%s block is unreachable and will not be generated", b.Kind.ID)
		}
	}
}

// socketPass verifies that every input socket of every generated block is
// fed by a literal, an incoming data edge, or an optional default.
func socketPass(g *graph.Graph, reachable map[graph.BlockID]bool, diags *diag.Diagnostics) {
	for _, id := range g.BlockIDs() {
		if !reachable[id] {
			continue
		}
		b, _ := g.Block(id)
		for _, sock := range b.Kind.Inputs() {
			if _, ok := b.Literal(sock.Name); ok {
				continue
			}
			if _, ok := g.IncomingData(id, sock.Name); ok {
				continue
			}
			if sock.Optional {
				continue
			}
			diags.Errorf(diag.Anchor{Block: id, Socket: sock.Name}, "missing required input %q", sock.Name)
		}
	}
}
