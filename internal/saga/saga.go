// Package saga runs an ordered list of steps across independent systems and, when a
// step fails, runs the compensations of the steps that already completed in reverse
// order.
//
// Compensations are retried a bounded number of times and run on a context that is
// detached from caller cancellation, so a timed-out request still cleans up. A
// compensation failure is reported but never replaces the error of the failed step.
package saga

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Step is one unit of a saga. Compensate may be nil for steps with nothing to undo.
// Compensations must be idempotent.
//
// UndoOnFailure runs the step's own Compensate when Run fails, before the earlier
// steps are undone. Set it for writes that may have committed even though Run
// returned an error, such as an insert whose reply hit a deadline.
type Step struct {
	Name          string
	Run           func(ctx context.Context) error
	Compensate    func(ctx context.Context) error
	UndoOnFailure bool
}

// StepError reports which step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("saga step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// CompensationFailure describes a compensation that exhausted its retries.
type CompensationFailure struct {
	Step string
	Err  error
}

// Options tunes compensation behavior.
type Options struct {
	// MaxRetries is the number of retries after the first compensation attempt.
	MaxRetries uint64
	// BaseBackoff is the first exponential backoff interval.
	BaseBackoff time.Duration
	// Timeout bounds all compensations of one run.
	Timeout time.Duration
	Logger  *slog.Logger
	// OnCompensationFailure is called once per compensation that gave up.
	OnCompensationFailure func(ctx context.Context, f CompensationFailure)
}

// Runner executes sagas. The zero value is not usable; call New.
type Runner struct {
	opts Options
}

func New(opts Options) *Runner {
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 100 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{opts: opts}
}

// Execute runs steps in order. On the first failure it compensates completed steps
// and returns a *StepError wrapping the original error.
func (r *Runner) Execute(ctx context.Context, name string, steps ...Step) error {
	completed := make([]Step, 0, len(steps))

	for _, step := range steps {
		if err := step.Run(ctx); err != nil {
			if step.UndoOnFailure {
				completed = append(completed, step)
			}
			r.compensate(ctx, name, step.Name, completed)
			return &StepError{Step: step.Name, Err: err}
		}
		completed = append(completed, step)
	}

	return nil
}

func (r *Runner) compensate(ctx context.Context, saga, failedStep string, completed []Step) {
	if len(completed) == 0 {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.Timeout)
	defer cancel()

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}

		attempts := 0
		backoff := retry.WithMaxRetries(r.opts.MaxRetries, retry.NewExponential(r.opts.BaseBackoff))
		err := retry.Do(cctx, backoff, func(ctx context.Context) error {
			attempts++
			if err := step.Compensate(ctx); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err == nil {
			r.opts.Logger.InfoContext(cctx, "saga compensation applied",
				"saga", saga, "failed_step", failedStep, "step", step.Name, "attempts", attempts)
			continue
		}

		r.opts.Logger.ErrorContext(cctx, "saga compensation failed",
			"saga", saga, "failed_step", failedStep, "step", step.Name, "attempts", attempts, "error", err)
		if r.opts.OnCompensationFailure != nil {
			r.opts.OnCompensationFailure(cctx, CompensationFailure{Step: step.Name, Err: err})
		}
	}
}
