package graph

import "fmt"

// MutationErrorCode classifies why a graph mutation was rejected.
type MutationErrorCode int

const (
	// CodeUnknownBlock means a referenced block id is not in the graph.
	CodeUnknownBlock MutationErrorCode = iota
	// CodeUnknownKind means AddBlock was given a kind id the catalog lacks.
	CodeUnknownKind
	// CodeInvalidEdge means a socket or port reference does not exist on the
	// referenced kind, or points the wrong direction.
	CodeInvalidEdge
	// CodeDuplicateEdge means the destination slot already holds an edge.
	CodeDuplicateEdge
)

func (c MutationErrorCode) String() string {
	switch c {
	case CodeUnknownBlock:
		return "unknown block"
	case CodeUnknownKind:
		return "unknown kind"
	case CodeInvalidEdge:
		return "invalid edge"
	case CodeDuplicateEdge:
		return "duplicate edge"
	}
	return fmt.Sprintf("MutationErrorCode(%d)", int(c))
}

// MutationError is returned by every rejected graph mutation. The graph is
// guaranteed unchanged when one is returned.
type MutationError struct {
	Code   MutationErrorCode
	Op     string
	Detail string
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Detail)
}

func mutationErr(op string, code MutationErrorCode, format string, args ...any) *MutationError {
	return &MutationError{Code: code, Op: op, Detail: fmt.Sprintf(format, args...)}
}
