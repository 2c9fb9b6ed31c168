package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/vk/araknidgo/internal/codegen"
	"github.com/vk/araknidgo/internal/ctxlog"
	"github.com/vk/araknidgo/internal/diag"
	"github.com/vk/araknidgo/internal/graph"
	"github.com/vk/araknidgo/internal/project"
	"github.com/vk/araknidgo/internal/session"
	"github.com/vk/araknidgo/internal/toolchain"
	"github.com/vk/araknidgo/internal/validate"
)

// ProgramExitError carries the generated program's own non-zero exit status
// so the CLI can propagate it instead of folding it into a generic failure.
type ProgramExitError struct {
	Code int
}

func (e *ProgramExitError) Error() string {
	return fmt.Sprintf("program exited with code %d", e.Code)
}

// Run executes the full pipeline: load the project, validate it, generate C
// source, and optionally compile and run it.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	doc, err := project.LoadFile(ctx, a.cat, a.config.ProjectPath)
	if err != nil {
		return err
	}
	a.logger.Debug("Project loaded.", "blocks", doc.Graph.Len())

	// Validation and generation run over a snapshot of the graph.
	snap := doc.Graph.Snapshot()
	validated, diags := validate.Validate(ctx, snap)
	a.printDiags(doc, diags)
	if diags.HasErrors() {
		return errors.New("project validation failed")
	}

	artifact, err := codegen.New().Generate(ctx, validated)
	if err != nil {
		var lowering *codegen.LoweringError
		if errors.As(err, &lowering) {
			a.printDiags(doc, lowering.Diags)
			return errors.New("code generation failed")
		}
		return err
	}
	a.logger.Debug("Source generated.", "lines", len(artifact.Map))

	switch {
	case a.config.OutputPath == "-":
		fmt.Fprint(a.outW, artifact.Source)
	case a.config.OutputPath != "":
		if err := os.WriteFile(a.config.OutputPath, []byte(artifact.Source), 0o644); err != nil {
			return fmt.Errorf("writing generated source: %w", err)
		}
	case !a.config.Build:
		fmt.Fprint(a.outW, artifact.Source)
	}

	if !a.config.Build {
		return nil
	}
	return a.buildAndRun(ctx, doc, artifact)
}

func (a *App) buildAndRun(ctx context.Context, doc *project.Document, artifact *codegen.Artifact) error {
	var flags []string
	if len(a.config.CFlags) > 0 {
		flags = a.config.CFlags
	}
	tc := toolchain.New(a.config.Compiler, flags)
	sess := session.New(tc)

	ticket := sess.Submit(ctx, session.Request{
		Artifact: artifact,
		Run:      a.config.Run,
		Stdin:    a.inR,
		Stdout:   a.outW,
		Stderr:   a.errW,
	})
	res := ticket.Wait()

	if res.Build != nil {
		a.printBuildDiags(doc, res.Build)
	}

	switch res.Status {
	case session.StatusCompleted:
		if res.Run != nil && res.Run.ExitCode != 0 {
			return &ProgramExitError{Code: res.Run.ExitCode}
		}
		return nil
	case session.StatusCanceled:
		return fmt.Errorf("build canceled: %w", res.Err)
	default:
		if errors.Is(res.Err, toolchain.ErrCompileFailed) {
			return errors.New("compilation failed")
		}
		return res.Err
	}
}

// printDiags writes validator diagnostics using the project file's block
// names rather than internal ids.
func (a *App) printDiags(doc *project.Document, diags diag.Diagnostics) {
	for _, d := range diags {
		anchor := d.Anchor.String()
		if d.Anchor.Block != graph.None {
			anchor = doc.NameOf(d.Anchor.Block)
			switch {
			case d.Anchor.Socket != "":
				anchor += "." + d.Anchor.Socket
			case d.Anchor.Port != "":
				anchor += ":" + d.Anchor.Port
			}
		}
		fmt.Fprintf(a.errW, "%s: %s: %s\n", anchor, d.Severity, d.Message)
	}
}

// printBuildDiags writes compiler diagnostics re-anchored onto block names,
// plus any compiler output that matched no block.
func (a *App) printBuildDiags(doc *project.Document, build *toolchain.BuildResult) {
	for _, d := range build.Diags {
		if d.Block != graph.None {
			fmt.Fprintf(a.errW, "%s: %s: %s\n", doc.NameOf(d.Block), d.Severity, d.Message)
		} else {
			fmt.Fprintf(a.errW, "line %d: %s: %s\n", d.Line, d.Severity, d.Message)
		}
	}
	for _, line := range build.Unattributed {
		fmt.Fprintln(a.errW, line)
	}
}
