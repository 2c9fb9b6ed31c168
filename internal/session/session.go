// Package session serializes build/run requests for a project. Validation
// and generation are synchronous and cheap; compiling and running are the
// only unbounded operations, so they execute on their own goroutine with a
// cancellable context. At most one request is in flight: submitting while a
// build runs cancels the previous one, whose result resolves with
// StatusSuperseded so callers can tell replacement apart from completion.
package session

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/vk/araknidgo/internal/codegen"
	"github.com/vk/araknidgo/internal/ctxlog"
	"github.com/vk/araknidgo/internal/toolchain"
)

// Status is the terminal state of a submitted request.
type Status int

const (
	// StatusCompleted means the compile (and run, if requested) finished.
	// The program's own exit code lives in Result.Run and may be non-zero.
	StatusCompleted Status = iota
	// StatusFailed means the compile was rejected or the toolchain broke.
	StatusFailed
	// StatusCanceled means the caller cancelled this request explicitly.
	StatusCanceled
	// StatusSuperseded means a newer Submit replaced this request.
	StatusSuperseded
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	case StatusSuperseded:
		return "superseded"
	}
	return "unknown"
}

// Request is one build (and optional run) of a generated artifact.
type Request struct {
	Artifact *codegen.Artifact
	// WorkDir is the scratch directory and survives the request. Empty
	// means a fresh temp dir, removed when the request resolves.
	WorkDir string
	// Run executes the produced binary after a successful compile.
	Run bool

	Stdin          io.Reader
	Stdout, Stderr io.Writer
}

// Result is the terminal outcome of a request.
type Result struct {
	Status Status
	// Build carries mapped diagnostics even when Status is StatusFailed.
	Build *toolchain.BuildResult
	Run   *toolchain.RunResult
	Err   error
}

// Ticket tracks one submitted request.
type Ticket struct {
	done       chan struct{}
	cancel     context.CancelFunc
	superseded atomic.Bool
	result     Result
}

// Wait blocks until the request reaches a terminal state.
func (t *Ticket) Wait() Result {
	<-t.done
	return t.result
}

// Done exposes completion for select loops.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Cancel kills the in-flight compile or program run. Cancelling a finished
// ticket is a no-op.
func (t *Ticket) Cancel() {
	t.cancel()
}

// Session owns the single-flight policy for one project.
type Session struct {
	tc *toolchain.Toolchain

	mu      sync.Mutex
	current *Ticket
}

// New creates a session around a toolchain.
func New(tc *toolchain.Toolchain) *Session {
	return &Session{tc: tc}
}

// Submit starts a build asynchronously and returns its ticket. Any request
// still in flight is cancelled and resolves as superseded.
func (s *Session) Submit(ctx context.Context, req Request) *Ticket {
	logger := ctxlog.FromContext(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	t := &Ticket{done: make(chan struct{}), cancel: cancel}

	s.mu.Lock()
	if prev := s.current; prev != nil {
		select {
		case <-prev.done:
		default:
			logger.Debug("Superseding in-flight build.")
			prev.superseded.Store(true)
			prev.cancel()
		}
	}
	s.current = t
	s.mu.Unlock()

	go s.execute(runCtx, t, req)
	return t
}

func (s *Session) execute(ctx context.Context, t *Ticket, req Request) {
	defer close(t.done)
	defer t.cancel()
	logger := ctxlog.FromContext(ctx)

	dir := req.WorkDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "blockc-*")
		if err != nil {
			t.result = Result{Status: StatusFailed, Err: err}
			return
		}
		dir = tmp
		// Session-owned scratch space is discarded with the request; a
		// caller-supplied WorkDir is left alone.
		defer os.RemoveAll(tmp)
	}

	build, err := s.tc.Build(ctx, req.Artifact, dir)
	if err != nil {
		t.result = Result{Status: s.failureStatus(ctx, t), Build: build, Err: err}
		logger.Debug("Build finished.", "status", t.result.Status, "error", err)
		return
	}

	res := Result{Status: StatusCompleted, Build: build}
	if req.Run {
		run, err := s.tc.Run(ctx, build.Executable, toolchain.RunOptions{
			Stdin:  req.Stdin,
			Stdout: req.Stdout,
			Stderr: req.Stderr,
		})
		if err != nil {
			t.result = Result{Status: s.failureStatus(ctx, t), Build: build, Err: err}
			return
		}
		res.Run = run
	}
	t.result = res
	logger.Debug("Build finished.", "status", res.Status)
}

// failureStatus distinguishes genuine failures from cancellation and
// replacement.
func (s *Session) failureStatus(ctx context.Context, t *Ticket) Status {
	if t.superseded.Load() {
		return StatusSuperseded
	}
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return StatusCanceled
	}
	return StatusFailed
}
