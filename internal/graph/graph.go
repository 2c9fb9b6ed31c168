// Package graph holds the mutable block graph: an arena of block instances
// addressed by stable ids, plus the data and control edges between them.
// Mutations validate only structure (the referenced sockets and ports must
// exist and single-slot destinations must be free); type checking is
// deliberately deferred to the validator so an in-progress graph stays
// editable.
package graph

import (
	"sort"
	"strconv"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/araknidgo/internal/catalog"
)

// BlockID is a stable, opaque identifier for a block instance. The zero
// value never names a block.
type BlockID int

// None is the absent block id.
const None BlockID = 0

func (id BlockID) String() string {
	if id == None {
		return "b?"
	}
	return "b" + strconv.Itoa(int(id))
}

// BlockInstance is one placed block. It is owned exclusively by its Graph;
// Kind points into the shared immutable catalog.
type BlockInstance struct {
	ID       BlockID
	Kind     *catalog.BlockKind
	literals map[string]cty.Value
}

// Literal returns the literal value set on an input socket, if any.
func (b *BlockInstance) Literal(socket string) (cty.Value, bool) {
	v, ok := b.literals[socket]
	return v, ok
}

// DataEdge connects an output socket to an input socket.
type DataEdge struct {
	Src       BlockID
	SrcSocket string
	Dst       BlockID
	DstSocket string
}

// ControlEdge connects a control port to its successor block.
type ControlEdge struct {
	Src  BlockID
	Port string
	Dst  BlockID
}

// Graph is the arena of block instances and their edges. Edge storage is
// slice-backed in insertion order so that every traversal the validator or
// generator performs is deterministic.
type Graph struct {
	cat    *catalog.Catalog
	nextID BlockID

	blocks  map[BlockID]*BlockInstance
	order   []BlockID
	data    []DataEdge
	control []ControlEdge
	entry   BlockID
}

// New creates an empty graph bound to a catalog.
func New(cat *catalog.Catalog) *Graph {
	return &Graph{
		cat:    cat,
		nextID: 1,
		blocks: make(map[BlockID]*BlockInstance),
	}
}

// Catalog returns the catalog this graph's kinds come from.
func (g *Graph) Catalog() *catalog.Catalog {
	return g.cat
}

// Len returns the number of blocks in the graph.
func (g *Graph) Len() int {
	return len(g.blocks)
}

// AddBlock instantiates a block of the given kind with initial socket
// literals and returns its id.
func (g *Graph) AddBlock(kindID string, literals map[string]cty.Value) (BlockID, error) {
	kind, err := g.cat.Lookup(kindID)
	if err != nil {
		return None, mutationErr("AddBlock", CodeUnknownKind, "%v", err)
	}
	for name := range literals {
		if err := checkLiteralSocket(kind, name); err != nil {
			return None, mutationErr("AddBlock", CodeInvalidEdge, "%v", err)
		}
	}

	id := g.nextID
	g.nextID++
	b := &BlockInstance{ID: id, Kind: kind, literals: make(map[string]cty.Value, len(literals))}
	for name, val := range literals {
		b.literals[name] = val
	}
	g.blocks[id] = b
	g.order = append(g.order, id)
	return id, nil
}

// RemoveBlock deletes a block and, atomically, every edge touching it. The
// entry designation is cleared if it pointed at the removed block.
func (g *Graph) RemoveBlock(id BlockID) error {
	if _, ok := g.blocks[id]; !ok {
		return mutationErr("RemoveBlock", CodeUnknownBlock, "%s", id)
	}
	delete(g.blocks, id)
	for i, o := range g.order {
		if o == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.data = filterData(g.data, func(e DataEdge) bool { return e.Src != id && e.Dst != id })
	g.control = filterControl(g.control, func(e ControlEdge) bool { return e.Src != id && e.Dst != id })
	if g.entry == id {
		g.entry = None
	}
	return nil
}

// SetLiteral sets or replaces the literal value on an input socket.
func (g *Graph) SetLiteral(id BlockID, socket string, val cty.Value) error {
	b, ok := g.blocks[id]
	if !ok {
		return mutationErr("SetLiteral", CodeUnknownBlock, "%s", id)
	}
	if err := checkLiteralSocket(b.Kind, socket); err != nil {
		return mutationErr("SetLiteral", CodeInvalidEdge, "%v", err)
	}
	b.literals[socket] = val
	return nil
}

// ClearLiteral removes the literal value from an input socket.
func (g *Graph) ClearLiteral(id BlockID, socket string) error {
	b, ok := g.blocks[id]
	if !ok {
		return mutationErr("ClearLiteral", CodeUnknownBlock, "%s", id)
	}
	if err := checkLiteralSocket(b.Kind, socket); err != nil {
		return mutationErr("ClearLiteral", CodeInvalidEdge, "%v", err)
	}
	delete(b.literals, socket)
	return nil
}

// ConnectData adds a data edge from an output socket to an input socket.
// An input socket holds at most one incoming edge; outputs may fan out.
func (g *Graph) ConnectData(src BlockID, srcSocket string, dst BlockID, dstSocket string) error {
	const op = "ConnectData"
	sb, ok := g.blocks[src]
	if !ok {
		return mutationErr(op, CodeUnknownBlock, "source %s", src)
	}
	db, ok := g.blocks[dst]
	if !ok {
		return mutationErr(op, CodeUnknownBlock, "destination %s", dst)
	}
	if src == dst {
		return mutationErr(op, CodeInvalidEdge, "self edge on %s", src)
	}
	ss, ok := sb.Kind.Socket(srcSocket)
	if !ok || ss.Dir != catalog.DirOut {
		return mutationErr(op, CodeInvalidEdge, "%s has no output socket %q", sb.Kind.ID, srcSocket)
	}
	ds, ok := db.Kind.Socket(dstSocket)
	if !ok || ds.Dir != catalog.DirIn {
		return mutationErr(op, CodeInvalidEdge, "%s has no input socket %q", db.Kind.ID, dstSocket)
	}
	if _, exists := g.IncomingData(dst, dstSocket); exists {
		return mutationErr(op, CodeDuplicateEdge, "socket %s.%s already has an incoming edge", dst, dstSocket)
	}
	g.data = append(g.data, DataEdge{Src: src, SrcSocket: srcSocket, Dst: dst, DstSocket: dstSocket})
	return nil
}

// DisconnectData removes the data edge arriving at an input socket.
func (g *Graph) DisconnectData(dst BlockID, dstSocket string) error {
	if _, ok := g.blocks[dst]; !ok {
		return mutationErr("DisconnectData", CodeUnknownBlock, "%s", dst)
	}
	for i, e := range g.data {
		if e.Dst == dst && e.DstSocket == dstSocket {
			g.data = append(g.data[:i], g.data[i+1:]...)
			return nil
		}
	}
	return mutationErr("DisconnectData", CodeInvalidEdge, "no edge into %s.%s", dst, dstSocket)
}

// ConnectControl adds a control edge from a port to a successor block. A
// port holds at most one outgoing edge.
func (g *Graph) ConnectControl(src BlockID, port string, dst BlockID) error {
	const op = "ConnectControl"
	sb, ok := g.blocks[src]
	if !ok {
		return mutationErr(op, CodeUnknownBlock, "source %s", src)
	}
	if _, ok := g.blocks[dst]; !ok {
		return mutationErr(op, CodeUnknownBlock, "destination %s", dst)
	}
	if src == dst {
		return mutationErr(op, CodeInvalidEdge, "self edge on %s", src)
	}
	if !sb.Kind.HasPort(port) {
		return mutationErr(op, CodeInvalidEdge, "%s has no control port %q", sb.Kind.ID, port)
	}
	if _, exists := g.ControlTarget(src, port); exists {
		return mutationErr(op, CodeDuplicateEdge, "port %s.%s already connected", src, port)
	}
	g.control = append(g.control, ControlEdge{Src: src, Port: port, Dst: dst})
	return nil
}

// DisconnectControl removes the edge leaving a control port.
func (g *Graph) DisconnectControl(src BlockID, port string) error {
	if _, ok := g.blocks[src]; !ok {
		return mutationErr("DisconnectControl", CodeUnknownBlock, "%s", src)
	}
	for i, e := range g.control {
		if e.Src == src && e.Port == port {
			g.control = append(g.control[:i], g.control[i+1:]...)
			return nil
		}
	}
	return mutationErr("DisconnectControl", CodeInvalidEdge, "no edge out of %s.%s", src, port)
}

// SetEntry designates the block the generated main body starts at.
func (g *Graph) SetEntry(id BlockID) error {
	if _, ok := g.blocks[id]; !ok {
		return mutationErr("SetEntry", CodeUnknownBlock, "%s", id)
	}
	g.entry = id
	return nil
}

// Entry returns the designated entry block, if set.
func (g *Graph) Entry() (BlockID, bool) {
	return g.entry, g.entry != None
}

// Block returns the instance for an id.
func (g *Graph) Block(id BlockID) (*BlockInstance, bool) {
	b, ok := g.blocks[id]
	return b, ok
}

// BlockIDs returns all block ids in insertion order.
func (g *Graph) BlockIDs() []BlockID {
	ids := make([]BlockID, len(g.order))
	copy(ids, g.order)
	return ids
}

// SortedBlockIDs returns all block ids in ascending id order.
func (g *Graph) SortedBlockIDs() []BlockID {
	ids := g.BlockIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DataEdges returns a copy of all data edges in insertion order.
func (g *Graph) DataEdges() []DataEdge {
	edges := make([]DataEdge, len(g.data))
	copy(edges, g.data)
	return edges
}

// ControlEdges returns a copy of all control edges in insertion order.
func (g *Graph) ControlEdges() []ControlEdge {
	edges := make([]ControlEdge, len(g.control))
	copy(edges, g.control)
	return edges
}

// IncomingData returns the edge arriving at an input socket, if any.
func (g *Graph) IncomingData(dst BlockID, socket string) (DataEdge, bool) {
	for _, e := range g.data {
		if e.Dst == dst && e.DstSocket == socket {
			return e, true
		}
	}
	return DataEdge{}, false
}

// DataSources returns all edges feeding a block, in insertion order.
func (g *Graph) DataSources(dst BlockID) []DataEdge {
	var edges []DataEdge
	for _, e := range g.data {
		if e.Dst == dst {
			edges = append(edges, e)
		}
	}
	return edges
}

// ControlTarget returns the successor reached through a port, if connected.
func (g *Graph) ControlTarget(src BlockID, port string) (BlockID, bool) {
	for _, e := range g.control {
		if e.Src == src && e.Port == port {
			return e.Dst, true
		}
	}
	return None, false
}

// ControlPreds returns every control edge arriving at a block.
func (g *Graph) ControlPreds(dst BlockID) []ControlEdge {
	var edges []ControlEdge
	for _, e := range g.control {
		if e.Dst == dst {
			edges = append(edges, e)
		}
	}
	return edges
}

// Snapshot deep-copies the graph. Validation and generation run over a
// snapshot so concurrent edits to the live graph are invisible to them.
// Kind pointers are shared; the catalog is immutable.
func (g *Graph) Snapshot() *Graph {
	cp := &Graph{
		cat:     g.cat,
		nextID:  g.nextID,
		blocks:  make(map[BlockID]*BlockInstance, len(g.blocks)),
		order:   append([]BlockID(nil), g.order...),
		data:    append([]DataEdge(nil), g.data...),
		control: append([]ControlEdge(nil), g.control...),
		entry:   g.entry,
	}
	for id, b := range g.blocks {
		nb := &BlockInstance{ID: b.ID, Kind: b.Kind, literals: make(map[string]cty.Value, len(b.literals))}
		for k, v := range b.literals {
			nb.literals[k] = v
		}
		cp.blocks[id] = nb
	}
	return cp
}

func checkLiteralSocket(kind *catalog.BlockKind, name string) error {
	s, ok := kind.Socket(name)
	if !ok {
		return &socketError{kind: kind.ID, socket: name, reason: "no such socket"}
	}
	if s.Dir != catalog.DirIn {
		return &socketError{kind: kind.ID, socket: name, reason: "not an input socket"}
	}
	return nil
}

type socketError struct {
	kind, socket, reason string
}

func (e *socketError) Error() string {
	return e.kind + "." + e.socket + ": " + e.reason
}

func filterData(edges []DataEdge, keep func(DataEdge) bool) []DataEdge {
	out := edges[:0]
	for _, e := range edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func filterControl(edges []ControlEdge, keep func(ControlEdge) bool) []ControlEdge {
	out := edges[:0]
	for _, e := range edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
