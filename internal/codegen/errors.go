package codegen

import (
	"fmt"

	"github.com/vk/araknidgo/internal/diag"
)

// LoweringError carries diagnostics for conditions only generation can see,
// such as two declarations of the same name in one scope. The graph itself
// is untouched; the build attempt is simply abandoned.
type LoweringError struct {
	Diags diag.Diagnostics
}

func (e *LoweringError) Error() string {
	return "lowering failed:\n" + e.Diags.Error()
}

// InternalError means the generator hit a state the validator should have
// rejected. It indicates a validator gap and is fatal for the attempt.
type InternalError struct {
	Detail string
}

func (e *InternalError) Error() string {
	return "internal generator fault (validator gap): " + e.Detail
}

func internalErrf(format string, args ...any) *InternalError {
	return &InternalError{Detail: fmt.Sprintf(format, args...)}
}
