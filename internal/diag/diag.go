// Package diag defines the diagnostic value shared by the validator and the
// toolchain bridge: a severity, a message, and an anchor naming the block
// (and optionally the socket or control port) the problem belongs to.
package diag

import (
	"fmt"
	"strings"

	"github.com/vk/araknidgo/internal/graph"
)

// Severity distinguishes blocking errors from advisory warnings.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Anchor names where a diagnostic points. A zero Block means the diagnostic
// concerns the graph as a whole. Socket and Port are mutually exclusive.
type Anchor struct {
	Block  graph.BlockID
	Socket string
	Port   string
}

func (a Anchor) String() string {
	switch {
	case a.Block == graph.None:
		return "graph"
	case a.Socket != "":
		return fmt.Sprintf("%s.%s", a.Block, a.Socket)
	case a.Port != "":
		return fmt.Sprintf("%s:%s", a.Block, a.Port)
	}
	return a.Block.String()
}

// Diagnostic is one reported issue. Never dropped: every producer either
// returns its diagnostics to the caller or fails loudly.
type Diagnostic struct {
	Severity Severity
	Message  string
	Anchor   Anchor
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Anchor, d.Severity, d.Message)
}

// Diagnostics is an accumulating batch of issues.
type Diagnostics []Diagnostic

// Errorf appends an error diagnostic.
func (ds *Diagnostics) Errorf(anchor Anchor, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: Error, Anchor: anchor, Message: fmt.Sprintf(format, args...)})
}

// Warnf appends a warning diagnostic.
func (ds *Diagnostics) Warnf(anchor Anchor, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: Warning, Anchor: anchor, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any diagnostic in the batch is an error.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == Error {
			out = append(out, d)
		}
	}
	return out
}

// Error implements the error interface so a batch can travel as one error.
func (ds Diagnostics) Error() string {
	if len(ds) == 0 {
		return "no diagnostics"
	}
	lines := make([]string, len(ds))
	for i, d := range ds {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}
