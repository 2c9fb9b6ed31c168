package codegen

import (
	"fmt"
	"slices"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/araknidgo/internal/catalog"
	"github.com/vk/araknidgo/internal/diag"
	"github.com/vk/araknidgo/internal/graph"
)

// lowerer walks control edges from the entry block and produces the
// intermediate statement tree. It tracks lexical scopes for declared names
// and collects the headers the rendered program will need.
type lowerer struct {
	g *graph.Graph

	diags    diag.Diagnostics
	includes map[string]bool
	usesBool bool

	scopes    []scope
	loopStack []graph.BlockID
}

type scope map[string]graph.BlockID

func newLowerer(g *graph.Graph) *lowerer {
	return &lowerer{
		g:        g,
		includes: make(map[string]bool),
		scopes:   []scope{make(scope)},
	}
}

func (lw *lowerer) pushScope() {
	lw.scopes = append(lw.scopes, make(scope))
}

func (lw *lowerer) popScope() {
	lw.scopes = lw.scopes[:len(lw.scopes)-1]
}

// declare introduces a name into the innermost scope. Shadowing an outer
// scope is allowed; a same-scope collision is a lowering error.
func (lw *lowerer) declare(name string, id graph.BlockID) {
	top := lw.scopes[len(lw.scopes)-1]
	if prev, exists := top[name]; exists {
		lw.diags.Errorf(diag.Anchor{Block: id},
			"name %q is already declared in this scope by %s", name, prev)
		return
	}
	top[name] = id
}

// chain lowers the linear control chain starting at id. The chain ends at an
// unconnected next port or at a back edge onto an enclosing loop block.
func (lw *lowerer) chain(id graph.BlockID) ([]stmtNode, error) {
	var stmts []stmtNode
	cur := id
	for cur != graph.None {
		b, ok := lw.g.Block(cur)
		if !ok {
			return nil, internalErrf("control edge targets missing block %s", cur)
		}

		node, err := lw.lowerBlock(b)
		if err != nil {
			return nil, err
		}
		if node != nil {
			stmts = append(stmts, node)
		}

		next, connected := lw.g.ControlTarget(cur, catalog.PortNext)
		if !connected || slices.Contains(lw.loopStack, next) {
			break
		}
		cur = next
	}
	return stmts, nil
}

func (lw *lowerer) lowerBlock(b *graph.BlockInstance) (stmtNode, error) {
	for _, inc := range b.Kind.Includes {
		lw.includes[inc] = true
	}

	switch b.Kind.Shape {
	case catalog.ShapeLinear:
		text, err := lw.expand(b)
		if err != nil {
			return nil, err
		}
		lw.declareSockets(b)
		if b.Kind.Directive {
			return &directiveStmt{text: text, block: b.ID}, nil
		}
		return &lineStmt{text: text, block: b.ID, terminator: b.Kind.Terminator}, nil

	case catalog.ShapeBranch:
		head, err := lw.expand(b)
		if err != nil {
			return nil, err
		}
		node := &branchStmt{head: head, block: b.ID}
		for _, arm := range b.Kind.Arms {
			target, connected := lw.g.ControlTarget(b.ID, arm.Name)
			ac := armChain{name: arm.Name, connected: connected}
			if connected {
				lw.pushScope()
				ac.stmts, err = lw.chain(target)
				lw.popScope()
				if err != nil {
					return nil, err
				}
			}
			node.arms = append(node.arms, ac)
		}
		return node, nil

	case catalog.ShapeLoop:
		head, err := lw.expand(b)
		if err != nil {
			return nil, err
		}
		node := &loopStmt{mode: b.Kind.Loop, head: head, block: b.ID}
		lw.pushScope()
		lw.declareSockets(b)
		if target, connected := lw.g.ControlTarget(b.ID, catalog.PortBody); connected {
			lw.loopStack = append(lw.loopStack, b.ID)
			node.body, err = lw.chain(target)
			lw.loopStack = lw.loopStack[:len(lw.loopStack)-1]
		}
		lw.popScope()
		if err != nil {
			return nil, err
		}
		return node, nil
	}

	return nil, internalErrf("block %s with shape %d reached statement lowering", b.ID, b.Kind.Shape)
}

// declareSockets registers names from declaring sockets into the current
// scope. For loop kinds the caller has already pushed the body scope, which
// is how a counted loop's counter ends up scoped to its body.
func (lw *lowerer) declareSockets(b *graph.BlockInstance) {
	for _, sock := range b.Kind.Inputs() {
		if !sock.Declares {
			continue
		}
		val, ok := b.Literal(sock.Name)
		if !ok {
			val = sock.Default
		}
		if val == cty.NilVal || val.Type() != cty.String {
			continue // the validator has already anchored an error here
		}
		lw.declare(val.AsString(), b.ID)
	}
}

// expand resolves the block's emission template against its socket values.
func (lw *lowerer) expand(b *graph.BlockInstance) (string, error) {
	return catalog.ExpandTemplate(b.Kind.Template, func(name string) (string, error) {
		sock, ok := b.Kind.Socket(name)
		if !ok {
			return "", internalErrf("%s template references unknown socket %q", b.Kind.ID, name)
		}
		return lw.socketValue(b, sock)
	})
}

// socketValue produces the C expression text for one input socket: a
// recursively lowered expression if a data edge arrives, the block's own
// literal otherwise, falling back to the socket default.
func (lw *lowerer) socketValue(b *graph.BlockInstance, sock *catalog.Socket) (string, error) {
	if edge, ok := lw.g.IncomingData(b.ID, sock.Name); ok {
		return lw.expr(edge.Src)
	}
	if val, ok := b.Literal(sock.Name); ok {
		return lw.renderLiteral(b.ID, sock, val)
	}
	if sock.HasDefault() {
		return lw.renderLiteral(b.ID, sock, sock.Default)
	}
	return "", internalErrf("socket %s.%s has no edge, literal, or default", b.ID, sock.Name)
}

// expr lowers an expression block into C expression text.
func (lw *lowerer) expr(id graph.BlockID) (string, error) {
	b, ok := lw.g.Block(id)
	if !ok {
		return "", internalErrf("data edge sources missing block %s", id)
	}
	if b.Kind.Category != catalog.CategoryExpression {
		return "", internalErrf("data edge sources non-expression block %s (%s)", id, b.Kind.ID)
	}
	for _, inc := range b.Kind.Includes {
		lw.includes[inc] = true
	}
	return lw.expand(b)
}

// renderLiteral turns a socket literal into C source text.
func (lw *lowerer) renderLiteral(id graph.BlockID, sock *catalog.Socket, val cty.Value) (string, error) {
	if sock.Raw {
		if val.Type() != cty.String {
			return "", internalErrf("raw socket %s.%s holds a %s literal", id, sock.Name, val.Type().FriendlyName())
		}
		return val.AsString(), nil
	}

	switch sock.Type {
	case catalog.TypeString:
		return cQuote(val.AsString()), nil
	case catalog.TypeChar:
		return cCharQuote(val.AsString()), nil
	case catalog.TypeBool:
		lw.usesBool = true
		if val.True() {
			return "true", nil
		}
		return "false", nil
	case catalog.TypeInt, catalog.TypeFloat:
		return formatNumber(val), nil
	}

	// "any" sockets render by the literal's own type.
	switch val.Type() {
	case cty.String:
		return cQuote(val.AsString()), nil
	case cty.Bool:
		lw.usesBool = true
		if val.True() {
			return "true", nil
		}
		return "false", nil
	case cty.Number:
		return formatNumber(val), nil
	}
	return "", internalErrf("socket %s.%s holds unrenderable literal type %s", id, sock.Name, val.Type().FriendlyName())
}

func formatNumber(val cty.Value) string {
	bf := val.AsBigFloat()
	if bf.IsInt() {
		i, _ := bf.Int(nil)
		return i.String()
	}
	f, _ := bf.Float64()
	return fmt.Sprintf("%g", f)
}

// cQuote renders a Go string as a double-quoted C string literal.
func cQuote(s string) string {
	buf := make([]byte, 0, len(s)+2)
	buf = append(buf, '"')
	buf = appendCEscaped(buf, s, '"')
	return string(append(buf, '"'))
}

// cCharQuote renders a one-character string as a C char literal.
func cCharQuote(s string) string {
	buf := make([]byte, 0, 6)
	buf = append(buf, '\'')
	buf = appendCEscaped(buf, s, '\'')
	return string(append(buf, '\''))
}

func appendCEscaped(buf []byte, s string, quote byte) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			buf = append(buf, '\\', '\\')
		case quote:
			buf = append(buf, '\\', quote)
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\t':
			buf = append(buf, '\\', 't')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\x00':
			buf = append(buf, '\\', '0')
		default:
			buf = append(buf, c)
		}
	}
	return buf
}
