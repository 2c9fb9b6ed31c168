package codegen

import (
	"github.com/vk/araknidgo/internal/catalog"
	"github.com/vk/araknidgo/internal/graph"
)

// The intermediate tree between lowering and rendering. Statement nodes keep
// the originating block id so the renderer can build the source map.

type stmtNode interface {
	origin() graph.BlockID
}

// lineStmt is a single fully-expanded statement line.
type lineStmt struct {
	text       string
	block      graph.BlockID
	terminator bool
}

func (s *lineStmt) origin() graph.BlockID { return s.block }

// directiveStmt is a preprocessor line hoisted into the include section.
type directiveStmt struct {
	text  string
	block graph.BlockID
}

func (s *directiveStmt) origin() graph.BlockID { return s.block }

// armChain is one lowered branch arm.
type armChain struct {
	name      string
	connected bool
	stmts     []stmtNode
}

// branchStmt is a lowered branching block: a rendered head expression plus
// its arms in catalog order. The first arm attaches to the head; subsequent
// connected arms render as else-blocks.
type branchStmt struct {
	head  string
	block graph.BlockID
	arms  []armChain
}

func (s *branchStmt) origin() graph.BlockID { return s.block }

// loopStmt is a lowered looping block with its body chain.
type loopStmt struct {
	mode  catalog.LoopMode
	head  string
	block graph.BlockID
	body  []stmtNode
}

func (s *loopStmt) origin() graph.BlockID { return s.block }
