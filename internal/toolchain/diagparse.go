package toolchain

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vk/araknidgo/internal/codegen"
	"github.com/vk/araknidgo/internal/graph"
)

// diagRE matches the conventional gcc/clang diagnostic line:
// file:line:column: severity: message
var diagRE = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(fatal error|error|warning|note):\s*(.*)$`)

// MappedDiagnostic is a compiler diagnostic re-anchored onto the block that
// produced the offending line. Block is graph.None when the line fell on
// structural punctuation.
type MappedDiagnostic struct {
	Block    graph.BlockID
	Line     int
	Severity string
	Message  string
}

// MapDiagnostics splits raw compiler output into diagnostics rewritten onto
// block ids via the source map, and verbatim lines that did not match the
// diagnostic pattern (linker failures, compiler-internal errors). Nothing is
// dropped.
func MapDiagnostics(output string, sm codegen.SourceMap) ([]MappedDiagnostic, []string) {
	var mapped []MappedDiagnostic
	var unattributed []string

	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := diagRE.FindStringSubmatch(line)
		if m == nil {
			unattributed = append(unattributed, line)
			continue
		}
		lineNo, err := strconv.Atoi(m[2])
		if err != nil {
			unattributed = append(unattributed, line)
			continue
		}
		mapped = append(mapped, MappedDiagnostic{
			Block:    sm.Block(lineNo),
			Line:     lineNo,
			Severity: m[4],
			Message:  m[5],
		})
	}
	return mapped, unattributed
}
