package saga

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestExecuteRunsAllSteps(t *testing.T) {
	r := New(Options{})
	var order []string

	err := r.Execute(context.Background(), "test",
		Step{Name: "a", Run: func(context.Context) error { order = append(order, "a"); return nil }},
		Step{Name: "b", Run: func(context.Context) error { order = append(order, "b"); return nil }},
	)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestExecuteCompensatesInReverse(t *testing.T) {
	r := New(Options{BaseBackoff: time.Millisecond})
	boom := errors.New("boom")
	var undone []string

	err := r.Execute(context.Background(), "test",
		Step{
			Name:       "a",
			Run:        func(context.Context) error { return nil },
			Compensate: func(context.Context) error { undone = append(undone, "a"); return nil },
		},
		Step{
			Name:       "b",
			Run:        func(context.Context) error { return nil },
			Compensate: func(context.Context) error { undone = append(undone, "b"); return nil },
		},
		Step{
			Name:       "c",
			Run:        func(context.Context) error { return boom },
			Compensate: func(context.Context) error { undone = append(undone, "c"); return nil },
		},
	)

	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != "c" {
		t.Fatalf("expected StepError for c, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error preserved, got %v", err)
	}
	if !reflect.DeepEqual(undone, []string{"b", "a"}) {
		t.Fatalf("expected reverse compensation of completed steps, got %v", undone)
	}
}

func TestCompensationRetriesThenReports(t *testing.T) {
	var reported []CompensationFailure
	r := New(Options{
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		OnCompensationFailure: func(_ context.Context, f CompensationFailure) {
			reported = append(reported, f)
		},
	})

	compErr := errors.New("provider down")
	calls := 0
	stepErr := errors.New("profile insert failed")

	err := r.Execute(context.Background(), "register",
		Step{
			Name: "create_identity",
			Run:  func(context.Context) error { return nil },
			Compensate: func(context.Context) error {
				calls++
				return compErr
			},
		},
		Step{Name: "create_profile", Run: func(context.Context) error { return stepErr }},
	)

	if !errors.Is(err, stepErr) {
		t.Fatalf("compensation failure must not replace original error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", calls)
	}
	if len(reported) != 1 || reported[0].Step != "create_identity" || !errors.Is(reported[0].Err, compErr) {
		t.Fatalf("unexpected compensation report: %+v", reported)
	}
}

func TestCompensationSurvivesCanceledCaller(t *testing.T) {
	r := New(Options{BaseBackoff: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	compensated := false
	_ = r.Execute(ctx, "test",
		Step{
			Name: "a",
			Run:  func(context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				compensated = true
				return nil
			},
		},
		Step{Name: "b", Run: func(context.Context) error {
			cancel()
			return context.Canceled
		}},
	)

	if !compensated {
		t.Fatal("expected compensation to run on a detached context")
	}
}

func TestUndoOnFailureCompensatesFailedStepFirst(t *testing.T) {
	r := New(Options{BaseBackoff: time.Millisecond})
	boom := errors.New("reply lost")
	var undone []string

	err := r.Execute(context.Background(), "test",
		Step{
			Name:       "a",
			Run:        func(context.Context) error { return nil },
			Compensate: func(context.Context) error { undone = append(undone, "a"); return nil },
		},
		Step{
			Name:          "b",
			Run:           func(context.Context) error { return boom },
			Compensate:    func(context.Context) error { undone = append(undone, "b"); return nil },
			UndoOnFailure: true,
		},
	)

	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if !reflect.DeepEqual(undone, []string{"b", "a"}) {
		t.Fatalf("expected failed step undone before earlier steps, got %v", undone)
	}
}

func TestUndoOnFailureFirstStep(t *testing.T) {
	r := New(Options{BaseBackoff: time.Millisecond})
	undone := false

	_ = r.Execute(context.Background(), "test",
		Step{
			Name:          "a",
			Run:           func(context.Context) error { return errors.New("timeout") },
			Compensate:    func(context.Context) error { undone = true; return nil },
			UndoOnFailure: true,
		},
	)

	if !undone {
		t.Fatal("expected the failed step to be compensated")
	}
}
