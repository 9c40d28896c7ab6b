// Package scheduler implements the plan execution scheduler (spec §4.14,
// component C14): pure orchestration over a caller-supplied Dispatcher that
// gives meaning to each PlanStep's Action. Grounded on the teacher's
// engine.Engine/WorkflowFunc abstraction (runtime/agent/engine/engine.go),
// simplified to the spec's single-process, non-durable, sequential-steps
// model.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/signalforge/decisioncore/plan"
	"github.com/signalforge/decisioncore/telemetry"
)

// Dispatcher gives meaning to a PlanStep's Action; step semantics are
// entirely delegated to it (spec §4.14: "step semantics ... are delegated
// to a caller-supplied dispatcher").
type Dispatcher interface {
	Dispatch(ctx context.Context, step plan.PlanStep, ectx plan.ExecutionContext) (any, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, step plan.PlanStep, ectx plan.ExecutionContext) (any, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, step plan.PlanStep, ectx plan.ExecutionContext) (any, error) {
	return f(ctx, step, ectx)
}

// ErrActionNotFound is returned (or wrapped) by a Dispatcher to signal an
// unregistered Action; the scheduler maps it to plan.ErrActionNotFound.
type ErrActionNotFound struct{ Action string }

func (e *ErrActionNotFound) Error() string { return fmt.Sprintf("action not found: %s", e.Action) }

// Observer receives best-effort, non-blocking plan execution events (spec
// §4.14: "an optional observer receives plan_execution_{success,partial,failure}").
// A failure to notify never alters the PlanResult.
type Observer interface {
	Notify(event string, result plan.PlanResult)
}

// nowMs is overridable in tests that need deterministic timestamps.
var nowMs = func() int64 { return time.Now().UnixMilli() }

// Scheduler executes Plans against a Dispatcher.
type Scheduler struct {
	dispatcher Dispatcher
	observer   Observer
	log        telemetry.Logger
}

// Options configures a Scheduler.
type Options struct {
	Observer Observer
	Logger   telemetry.Logger
}

// New constructs a Scheduler.
func New(dispatcher Dispatcher, opts Options) *Scheduler {
	log := opts.Logger
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Scheduler{dispatcher: dispatcher, observer: opts.Observer, log: log}
}

// Execute runs p against ectx, returning a PlanResult. It never panics or
// returns an error: every failure mode is captured in the returned
// PlanResult.Error (spec §4.14).
func (s *Scheduler) Execute(ctx context.Context, p plan.Plan, ectx plan.ExecutionContext) plan.PlanResult {
	start := clockMs()

	if execErr := validatePlan(p); execErr != nil {
		return s.finish(p, ectx, start, 0, execErr)
	}
	if execErr := validateContext(p, ectx); execErr != nil {
		return s.finish(p, ectx, start, 0, execErr)
	}

	completed := make(map[string]struct{}, len(p.Steps))
	stepsExecuted := 0
	var lastNonFatal *plan.ExecutionError

	for _, step := range p.Steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				execErr := plan.NewExecutionError(plan.ErrDependencyUnresolved,
					fmt.Sprintf("step %q depends on unresolved step %q", step.ID, dep), plan.SeverityFatal)
				execErr.StepID = step.ID
				return s.finish(p, ectx, start, stepsExecuted, execErr)
			}
		}

		if clockMs() > ectx.DeadlineMs {
			execErr := plan.NewExecutionError(plan.ErrDeadlineExceeded,
				fmt.Sprintf("deadline %d exceeded before step %q", ectx.DeadlineMs, step.ID), plan.SeverityFatal)
			execErr.StepID = step.ID
			return s.finish(p, ectx, start, stepsExecuted, execErr)
		}

		stepCtx := ctx
		var cancel context.CancelFunc
		if step.TimeoutMs > 0 {
			stepCtx, cancel = withTimeoutMs(ctx, step.TimeoutMs)
		}
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("step dispatcher panicked: %v", r)
				}
			}()
			_, err = s.dispatcher.Dispatch(stepCtx, step, ectx)
		}()
		if cancel != nil {
			cancel()
		}

		if err == nil {
			completed[step.ID] = struct{}{}
			stepsExecuted++
			continue
		}

		code, severity := classifyStepError(err)
		onFailure := step.OnFailure
		if onFailure == "" {
			onFailure = plan.OnFailureHalt
		}

		switch onFailure {
		case plan.OnFailureHalt:
			execErr := plan.NewExecutionError(code, err.Error(), plan.SeverityFatal)
			execErr.StepID = step.ID
			execErr.Cause = err
			return s.finish(p, ectx, start, stepsExecuted, execErr)

		case plan.OnFailureSkip:
			stepCode := code
			if stepCode == plan.ErrUnknownError {
				stepCode = plan.ErrStepSkipped
			}
			execErr := plan.NewExecutionError(stepCode, err.Error(), severity)
			execErr.StepID = step.ID
			execErr.Cause = err
			lastNonFatal = execErr
			completed[step.ID] = struct{}{}
			stepsExecuted++

		case plan.OnFailureRetry:
			// Retry is reserved for a future implementation (spec §4.14,
			// §9 Open Question); v1 treats it as an immediate fatal halt.
			execErr := plan.NewExecutionError(plan.ErrExecutionHalted, err.Error(), plan.SeverityFatal)
			execErr.StepID = step.ID
			execErr.Cause = err
			return s.finish(p, ectx, start, stepsExecuted, execErr)

		default:
			execErr := plan.NewExecutionError(plan.ErrInvalidPayload,
				fmt.Sprintf("step %q has unknown on_failure %q", step.ID, step.OnFailure), plan.SeverityFatal)
			execErr.StepID = step.ID
			return s.finish(p, ectx, start, stepsExecuted, execErr)
		}
	}

	return s.finish(p, ectx, start, stepsExecuted, lastNonFatal)
}

func (s *Scheduler) finish(p plan.Plan, ectx plan.ExecutionContext, startMs int64, stepsExecuted int, execErr *plan.ExecutionError) plan.PlanResult {
	completedAt := clockMs()
	result := plan.PlanResult{
		PlanID:        p.ID,
		ExecutionID:   ectx.ExecutionID,
		CompletedAtMs: completedAt,
		DurationMs:    completedAt - startMs,
		StepsExecuted: stepsExecuted,
		StepsTotal:    len(p.Steps),
		Error:         execErr,
	}
	result.Status = plan.DeriveStatus(execErr, stepsExecuted, result.StepsTotal)

	if s.observer != nil {
		eventName := "plan_execution_" + string(result.Status)
		s.notifyObserver(eventName, result)
	}
	return result
}

// notifyObserver invokes the observer, absorbing any panic so a
// misbehaving observer never corrupts the already-computed PlanResult
// (spec §4.14: "failures to notify do not alter PlanResult").
func (s *Scheduler) notifyObserver(event string, result plan.PlanResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn(context.Background(), "plan execution observer panicked", "event", event, "panic", fmt.Sprint(r))
		}
	}()
	s.observer.Notify(event, result)
}

// classifyStepError maps a dispatcher error to a reserved error code and
// default severity. An *ErrActionNotFound maps to plan.ErrActionNotFound;
// anything else defaults to plan.ErrUnknownError at SeverityError (the
// severity a step's on_failure policy may then override).
func classifyStepError(err error) (code string, severity plan.Severity) {
	if _, ok := err.(*ErrActionNotFound); ok {
		return plan.ErrActionNotFound, plan.SeverityError
	}
	return plan.ErrUnknownError, plan.SeverityError
}

func clockMs() int64 { return nowMs() }

func withTimeoutMs(ctx context.Context, ms int64) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
}
