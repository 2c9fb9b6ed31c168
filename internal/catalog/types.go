package catalog

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ValueType is the closed set of socket value types. It is deliberately the
// C-facing type vocabulary, not a general type system: the validator only
// ever needs equality plus the "any" wildcard.
type ValueType int

const (
	TypeAny ValueType = iota
	TypeInt
	TypeFloat
	TypeChar
	TypeString
	TypeBool
)

// String returns the manifest spelling of the type.
func (t ValueType) String() string {
	switch t {
	case TypeAny:
		return "any"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeChar:
		return "char"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// ParseValueType converts a manifest type name into a ValueType.
func ParseValueType(s string) (ValueType, error) {
	switch s {
	case "any":
		return TypeAny, nil
	case "int":
		return TypeInt, nil
	case "float":
		return TypeFloat, nil
	case "char":
		return TypeChar, nil
	case "string":
		return TypeString, nil
	case "bool":
		return TypeBool, nil
	}
	return TypeAny, fmt.Errorf("unknown socket type %q", s)
}

// CtyType maps a socket type to the cty type its literal values are held in.
// int and float share cty.Number; the whole-number constraint on int literals
// is enforced separately by the validator.
func (t ValueType) CtyType() cty.Type {
	switch t {
	case TypeInt, TypeFloat:
		return cty.Number
	case TypeChar, TypeString:
		return cty.String
	case TypeBool:
		return cty.Bool
	}
	return cty.DynamicPseudoType
}

// Compatible reports whether a value produced on an output socket of type out
// may flow into an input socket of type in. "any" on either side matches
// everything; otherwise the types must be identical.
func Compatible(out, in ValueType) bool {
	if out == TypeAny || in == TypeAny {
		return true
	}
	return out == in
}

// Direction distinguishes input sockets from output sockets.
type Direction int

const (
	DirIn Direction = iota
	DirOut
)

func (d Direction) String() string {
	if d == DirOut {
		return "out"
	}
	return "in"
}

// Category is the coarse role of a block kind.
type Category int

const (
	CategoryStatement Category = iota
	CategoryExpression
	CategoryControl
)

func (c Category) String() string {
	switch c {
	case CategoryStatement:
		return "statement"
	case CategoryExpression:
		return "expression"
	case CategoryControl:
		return "control"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Shape is the control-port layout of a kind. Expression kinds have no
// control ports at all; everything else at least has a linear "next".
type Shape int

const (
	ShapeNone Shape = iota
	ShapeLinear
	ShapeBranch
	ShapeLoop
)

// LoopMode selects how a loop kind's template wraps its body.
type LoopMode int

const (
	// LoopPretest renders "HEADER { body }" (while).
	LoopPretest LoopMode = iota
	// LoopPosttest renders "do { body } while (TEMPLATE);".
	LoopPosttest
	// LoopCounted renders like pretest but introduces the kind's declaring
	// sockets into the body scope (for).
	LoopCounted
)

// Socket describes one typed data port on a block kind.
type Socket struct {
	Name     string
	Type     ValueType
	Dir      Direction
	Optional bool
	// Default is the literal substituted when an optional input socket is
	// left unconnected. cty.NilVal means no default.
	Default cty.Value
	// Raw sockets render their literal verbatim (identifiers, operators)
	// instead of as a C literal of the socket type.
	Raw bool
	// Choices restricts the literal to a fixed set of spellings.
	Choices []string
	// Declares marks the socket's literal as a variable name the block
	// introduces into scope.
	Declares bool
}

// HasDefault reports whether the socket carries a usable default literal.
func (s *Socket) HasDefault() bool {
	return s.Default != cty.NilVal
}

// Arm names one branch arm of a branching kind and whether a control edge
// on it is mandatory.
type Arm struct {
	Name     string
	Required bool
}

// BlockKind is one immutable catalog entry. Instances never mutate it; the
// validator and generator interpret it as data.
type BlockKind struct {
	ID       string
	Label    string
	Category Category
	Shape    Shape

	// Arms is populated for ShapeBranch kinds, in manifest order.
	Arms []Arm
	// Loop is meaningful for ShapeLoop kinds.
	Loop LoopMode

	// Template is the emission template. ${name} placeholders resolve to
	// the like-named input socket's value at generation time.
	Template string
	// Includes lists headers the generated program needs whenever a block
	// of this kind is emitted.
	Includes []string
	// Directive kinds render into the include section instead of the
	// statement body.
	Directive bool
	// RequiresLoop kinds (break, continue) are only legal inside a loop body.
	RequiresLoop bool
	// Terminator kinds (return) end the statement chain they appear in.
	Terminator bool

	sockets     []Socket
	socketIndex map[string]int
}

// Sockets returns the kind's sockets in declaration order.
func (k *BlockKind) Sockets() []Socket {
	return k.sockets
}

// Socket looks up a socket by name.
func (k *BlockKind) Socket(name string) (*Socket, bool) {
	i, ok := k.socketIndex[name]
	if !ok {
		return nil, false
	}
	return &k.sockets[i], true
}

// Inputs returns the input sockets in declaration order.
func (k *BlockKind) Inputs() []Socket {
	var in []Socket
	for _, s := range k.sockets {
		if s.Dir == DirIn {
			in = append(in, s)
		}
	}
	return in
}

// Outputs returns the output sockets in declaration order.
func (k *BlockKind) Outputs() []Socket {
	var out []Socket
	for _, s := range k.sockets {
		if s.Dir == DirOut {
			out = append(out, s)
		}
	}
	return out
}

// PortNext is the linear successor port present on every non-expression kind.
const PortNext = "next"

// PortBody is the loop-body port of ShapeLoop kinds.
const PortBody = "body"

// Ports returns the kind's control port names in a fixed order: branch arms
// or the loop body first, then the linear successor.
func (k *BlockKind) Ports() []string {
	switch k.Shape {
	case ShapeLinear:
		return []string{PortNext}
	case ShapeBranch:
		ports := make([]string, 0, len(k.Arms)+1)
		for _, a := range k.Arms {
			ports = append(ports, a.Name)
		}
		return append(ports, PortNext)
	case ShapeLoop:
		return []string{PortBody, PortNext}
	}
	return nil
}

// HasPort reports whether the named control port exists on this kind.
func (k *BlockKind) HasPort(name string) bool {
	for _, p := range k.Ports() {
		if p == name {
			return true
		}
	}
	return false
}

// ArmSpec returns the arm descriptor for a branch port, if any.
func (k *BlockKind) ArmSpec(name string) (*Arm, bool) {
	for i := range k.Arms {
		if k.Arms[i].Name == name {
			return &k.Arms[i], true
		}
	}
	return nil, false
}
