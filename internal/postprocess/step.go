// Package postprocess runs the optional steps that follow a completed
// acquisition: BitLocker decryption, EWF container conversion and zstd
// export. Each step declares whether it can run on this host so missing
// tools are reported before imaging starts.
package postprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/digest"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/event"
)

var (
	ErrUnavailable = errors.New("post-processing step unavailable")
	ErrStepFailed  = errors.New("post-processing step failed")
)

// Case carries the documentation fields written into evidence containers.
type Case struct {
	Number   string
	Examiner string
	Evidence string
	Notes    string
}

// Journal receives step progress lines. *journal.Journal implements it.
type Journal interface {
	Recordf(format string, args ...any) error
}

// Input is what a step works on.
type Input struct {
	Image     string // current evidence image; advances as steps produce new evidence
	RawImage  string // the acquired raw image
	OutputDir string
	Source    string
	Digests   [2]digest.Sum // digests of RawImage
	Case      Case
	Journal   Journal
	Logger    *slog.Logger
}

func (in Input) logger() *slog.Logger {
	if in.Logger == nil {
		return slog.Default()
	}
	return in.Logger
}

// Output is what a step produced.
type Output struct {
	Path string
	// Evidence marks Path as the new primary evidence file.
	Evidence bool
	// Digests of Path, when the step computed them.
	Digests [2]digest.Sum
}

// Step is one post-processing operation.
type Step interface {
	Name() string
	// Available reports why the step cannot run here, or nil.
	Available() error
	Run(ctx context.Context, in Input) (Output, error)
}

// Outcome records how one step went.
type Outcome struct {
	Step    string
	Output  Output
	Err     error
	Elapsed time.Duration
}

// Succeeded reports whether the step finished without error.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// CheckAvailable returns an error naming every step that cannot run.
func CheckAvailable(steps []Step) error {
	var errs []error
	for _, s := range steps {
		if err := s.Available(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrUnavailable, s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Runner executes steps in order and tracks the evidence path.
type Runner struct {
	Steps  []Step
	Events chan<- event.Event
	Now    func() time.Time
}

// Run executes every step. A failed step is recorded and the chain
// continues with the previous evidence path. The returned error joins
// every step failure.
func (r *Runner) Run(ctx context.Context, in Input) ([]Outcome, string, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	if in.Logger == nil {
		in.Logger = slog.Default()
	}
	if in.Image == "" {
		in.Image = in.RawImage
	}

	var (
		outcomes []Outcome
		errs     []error
	)
	for _, s := range r.Steps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		start := now()
		r.emit(event.Event{Type: event.StepStarted, Step: s.Name(), Path: in.Image, Timestamp: start})

		var (
			out Output
			err error
		)
		if err = s.Available(); err != nil {
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		} else {
			out, err = s.Run(ctx, in)
		}
		o := Outcome{Step: s.Name(), Output: out, Err: err, Elapsed: now().Sub(start)}
		outcomes = append(outcomes, o)

		if err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrStepFailed, s.Name(), err)
			errs = append(errs, err)
			in.Logger.Error("post-processing step failed", "step", s.Name(), "error", err)
			record(in.Journal, "[!] %s failed: %v", s.Name(), o.Err)
			r.emit(event.Event{Type: event.StepFailed, Step: s.Name(), Error: err, Timestamp: now()})
			continue
		}

		in.Logger.Info("post-processing step complete", "step", s.Name(), "output", out.Path)
		r.emit(event.Event{
			Type: event.StepCompleted, Step: s.Name(), Path: out.Path,
			Elapsed: o.Elapsed, Timestamp: now(),
		})
		if out.Evidence {
			in.Image = out.Path
		}
	}
	return outcomes, in.Image, errors.Join(errs...)
}

func (r *Runner) emit(e event.Event) {
	if r.Events == nil {
		return
	}
	select {
	case r.Events <- e:
	default:
	}
}

func record(j Journal, format string, args ...any) {
	if j == nil {
		return
	}
	_ = j.Recordf(format, args...)
}

// CommandFunc runs an external program with stdin and returns its
// combined stdout and stderr.
type CommandFunc func(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)

// LookPathFunc resolves a program name on PATH.
type LookPathFunc func(name string) (string, error)

// ExecCommand runs name through os/exec.
func ExecCommand(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(out.Bytes()))
	}
	return out.Bytes(), nil
}
