// Package codegen lowers a validated graph into an intermediate statement
// tree and renders it as formatted C source text, recording for every output
// line the block that produced it.
package codegen

import (
	"context"
	"sort"
	"strings"

	"github.com/vk/araknidgo/internal/catalog"
	"github.com/vk/araknidgo/internal/ctxlog"
	"github.com/vk/araknidgo/internal/graph"
	"github.com/vk/araknidgo/internal/validate"
)

// SourceMap maps each output line (1-based index i is element i-1) to the
// block that produced it, or graph.None for structural punctuation.
type SourceMap []graph.BlockID

// Block returns the block anchored at a 1-based source line.
func (m SourceMap) Block(line int) graph.BlockID {
	if line < 1 || line > len(m) {
		return graph.None
	}
	return m[line-1]
}

// Artifact is the result of generation: source text plus its SourceMap.
// Generating twice from the same ValidatedGraph yields identical artifacts.
type Artifact struct {
	Source string
	Map    SourceMap
}

// Generator renders validated graphs. It is stateless; one instance can
// serve any number of Generate calls.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// Generate lowers and renders a validated graph. Accepting only the
// validate package's proof token keeps generation from ever running over an
// unchecked graph. The returned error is either a *LoweringError
// (user-visible, e.g. duplicate names) or an *InternalError (validator gap,
// fatal for the attempt).
func (gen *Generator) Generate(ctx context.Context, v *validate.ValidatedGraph) (*Artifact, error) {
	logger := ctxlog.FromContext(ctx)
	g := v.Graph()

	lw := newLowerer(g)
	var body []stmtNode
	if entry, ok := g.Entry(); ok {
		var err error
		body, err = lw.chain(entry)
		if err != nil {
			logger.Error("Generation failed.", "error", err)
			return nil, err
		}
	}
	if lw.diags.HasErrors() {
		return nil, &LoweringError{Diags: lw.diags}
	}

	art := render(lw, body)
	logger.Debug("Generation complete.", "lines", len(art.Map), "bytes", len(art.Source))
	return art, nil
}

const indentUnit = "    "

// render pretty-prints the statement tree inside a synthesized main and
// builds the source map as it goes.
func render(lw *lowerer, body []stmtNode) *Artifact {
	r := &renderer{}

	// Include section: inferred headers first (sorted), then explicit
	// directive blocks, deduplicated against the inferred set.
	if lw.usesBool {
		lw.includes["stdbool.h"] = true
	}
	inferred := make([]string, 0, len(lw.includes))
	for inc := range lw.includes {
		inferred = append(inferred, inc)
	}
	sort.Strings(inferred)
	for _, inc := range inferred {
		r.emit(0, "#include <"+inc+">", graph.None)
	}
	seen := make(map[string]bool)
	for _, d := range collectDirectives(body) {
		if lw.includes[headerOf(d.text)] || seen[d.text] {
			continue
		}
		seen[d.text] = true
		r.emit(0, d.text, d.block)
	}
	if len(r.lines) > 0 {
		r.emit(0, "", graph.None)
	}

	r.emit(0, "int main(void) {", graph.None)
	r.stmts(1, body)
	if !endsWithTerminator(body) {
		r.emit(1, "return 0;", graph.None)
	}
	r.emit(0, "}", graph.None)

	return &Artifact{
		Source: strings.Join(r.lines, "\n") + "\n",
		Map:    r.blocks,
	}
}

type renderer struct {
	lines  []string
	blocks SourceMap
}

func (r *renderer) emit(depth int, text string, block graph.BlockID) {
	if text == "" {
		r.lines = append(r.lines, "")
	} else {
		r.lines = append(r.lines, strings.Repeat(indentUnit, depth)+text)
	}
	r.blocks = append(r.blocks, block)
}

func (r *renderer) stmts(depth int, nodes []stmtNode) {
	for _, n := range nodes {
		switch s := n.(type) {
		case *lineStmt:
			r.emit(depth, s.text, s.block)
		case *directiveStmt:
			// Hoisted into the include section; nothing to emit here.
		case *branchStmt:
			r.branch(depth, s)
		case *loopStmt:
			r.loop(depth, s)
		}
	}
}

func (r *renderer) branch(depth int, s *branchStmt) {
	r.emit(depth, s.head+" {", s.block)
	if len(s.arms) > 0 {
		r.stmts(depth+1, s.arms[0].stmts)
	}
	for _, arm := range s.arms[1:] {
		if !arm.connected {
			continue
		}
		r.emit(depth, "} else {", s.block)
		r.stmts(depth+1, arm.stmts)
	}
	r.emit(depth, "}", graph.None)
}

func (r *renderer) loop(depth int, s *loopStmt) {
	switch s.mode {
	case catalog.LoopPosttest:
		r.emit(depth, "do {", s.block)
		r.stmts(depth+1, s.body)
		r.emit(depth, "} while ("+s.head+");", s.block)
	default:
		r.emit(depth, s.head+" {", s.block)
		r.stmts(depth+1, s.body)
		r.emit(depth, "}", graph.None)
	}
}

func collectDirectives(nodes []stmtNode) []*directiveStmt {
	var out []*directiveStmt
	for _, n := range nodes {
		switch s := n.(type) {
		case *directiveStmt:
			out = append(out, s)
		case *branchStmt:
			for _, arm := range s.arms {
				out = append(out, collectDirectives(arm.stmts)...)
			}
		case *loopStmt:
			out = append(out, collectDirectives(s.body)...)
		}
	}
	return out
}

// headerOf extracts the header name from an include directive line, so
// explicit include blocks dedupe against inferred headers.
func headerOf(line string) string {
	line = strings.TrimPrefix(line, "#include <")
	return strings.TrimSuffix(line, ">")
}

func endsWithTerminator(nodes []stmtNode) bool {
	for i := len(nodes) - 1; i >= 0; i-- {
		if ls, ok := nodes[i].(*lineStmt); ok {
			return ls.terminator
		}
		if _, ok := nodes[i].(*directiveStmt); ok {
			continue
		}
		return false
	}
	return false
}
