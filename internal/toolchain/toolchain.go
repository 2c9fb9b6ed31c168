// Package toolchain is the external-compiler bridge: it writes generated
// source to a scratch location, invokes the configured C compiler, parses
// its diagnostics back onto block ids, and runs the produced executable.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/vk/araknidgo/internal/codegen"
	"github.com/vk/araknidgo/internal/ctxlog"
)

// DefaultFlags is the fixed flag set passed on every compile.
var DefaultFlags = []string{"-Wall", "-Wextra", "-std=c11"}

// ErrCompileFailed marks a compiler run that exited non-zero. The
// BuildResult returned alongside it carries the mapped diagnostics.
var ErrCompileFailed = errors.New("compilation failed")

// ToolchainError is an invocation-level failure: the compiler could not be
// found or started at all, as opposed to rejecting the source.
type ToolchainError struct {
	Op  string
	Err error
}

func (e *ToolchainError) Error() string {
	return fmt.Sprintf("toolchain: %s: %v", e.Op, e.Err)
}

func (e *ToolchainError) Unwrap() error {
	return e.Err
}

// Toolchain invokes one configured compiler executable.
type Toolchain struct {
	Compiler string
	Flags    []string
}

// New creates a toolchain for the given compiler path. An empty path falls
// back to whatever Locate finds; empty flags fall back to DefaultFlags.
func New(compiler string, flags []string) *Toolchain {
	if flags == nil {
		flags = DefaultFlags
	}
	return &Toolchain{Compiler: compiler, Flags: flags}
}

// Locate searches PATH for a usable C compiler, preferring clang, then gcc,
// then cc.
func Locate() (string, error) {
	for _, name := range []string{"clang", "gcc", "cc"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.New("no C compiler found in PATH (tried clang, gcc, cc)")
}

// BuildResult is the outcome of one compile.
type BuildResult struct {
	// Executable is the path of the produced binary; empty when the
	// compile failed.
	Executable string
	// Diags are compiler diagnostics re-anchored onto blocks. Warnings
	// appear here even on success.
	Diags []MappedDiagnostic
	// Unattributed holds compiler output lines that matched no diagnostic
	// pattern, preserved verbatim.
	Unattributed []string
	// Log is the complete raw compiler output.
	Log string
}

// Build writes the artifact's source into dir, compiles it, and maps any
// diagnostics back onto blocks through the artifact's source map. A non-zero
// compiler exit returns the populated result together with ErrCompileFailed;
// failures to invoke the compiler at all return a *ToolchainError.
func (t *Toolchain) Build(ctx context.Context, art *codegen.Artifact, dir string) (*BuildResult, error) {
	logger := ctxlog.FromContext(ctx)

	compiler := t.Compiler
	if compiler == "" {
		located, err := Locate()
		if err != nil {
			return nil, &ToolchainError{Op: "locate compiler", Err: err}
		}
		compiler = located
	}

	srcPath := filepath.Join(dir, "main.c")
	if err := os.WriteFile(srcPath, []byte(art.Source), 0o644); err != nil {
		return nil, &ToolchainError{Op: "write source", Err: err}
	}

	exePath := filepath.Join(dir, "prog")
	if runtime.GOOS == "windows" {
		exePath += ".exe"
	}

	args := append(append([]string(nil), t.Flags...), "-o", exePath, srcPath)
	logger.Debug("Invoking compiler.", "compiler", compiler, "args", args)

	cmd := exec.CommandContext(ctx, compiler, args...)
	out, err := cmd.CombinedOutput()
	result := &BuildResult{Log: string(out)}
	result.Diags, result.Unattributed = MapDiagnostics(string(out), art.Map)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Debug("Compiler rejected source.", "exit", exitErr.ExitCode(), "diagnostics", len(result.Diags))
			return result, ErrCompileFailed
		}
		return nil, &ToolchainError{Op: "invoke compiler", Err: err}
	}

	result.Executable = exePath
	logger.Debug("Compile succeeded.", "executable", exePath, "warnings", len(result.Diags))
	return result, nil
}

// RunResult reports how the generated program exited. The core does not
// interpret the program's behavior; output and exit status pass through
// unaltered.
type RunResult struct {
	ExitCode int
}

// Run executes the built program with no arguments, streaming its stdout and
// stderr to the given writers. Cancelling the context kills the process.
func (t *Toolchain) Run(ctx context.Context, exePath string, opts RunOptions) (*RunResult, error) {
	logger := ctxlog.FromContext(ctx)

	cmd := exec.CommandContext(ctx, exePath)
	cmd.Dir = filepath.Dir(exePath)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	logger.Debug("Running generated program.", "path", exePath)
	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Debug("Program exited non-zero.", "exit", exitErr.ExitCode())
			return &RunResult{ExitCode: exitErr.ExitCode()}, nil
		}
		return nil, &ToolchainError{Op: "run program", Err: err}
	}
	return &RunResult{ExitCode: 0}, nil
}

// RunOptions wires the generated program's standard streams. Nil writers
// discard; nil stdin reads EOF.
type RunOptions struct {
	Stdin          io.Reader
	Stdout, Stderr io.Writer
}
