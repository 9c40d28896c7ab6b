package scheduler

import (
	"fmt"

	"github.com/signalforge/decisioncore/plan"
)

// validatePlan performs the pre-execution structural validation of spec
// §4.14. Any failure is fatal.
func validatePlan(p plan.Plan) *plan.ExecutionError {
	if p.ID == "" {
		return fatal(plan.ErrInvalidPayload, "plan id must be non-empty")
	}
	if p.Version < 1 {
		return fatal(plan.ErrInvalidPayload, "plan version must be >= 1")
	}
	if len(p.Steps) < 1 || len(p.Steps) > 1024 {
		return fatal(plan.ErrInvalidPayload, fmt.Sprintf("plan must have between 1 and 1024 steps, got %d", len(p.Steps)))
	}
	if len(p.Name) > 255 {
		return fatal(plan.ErrInvalidPayload, "plan name must be <= 255 characters")
	}
	if len(p.ContextRequirements) == 0 {
		return fatal(plan.ErrContextMissing, "plan context_requirements must be non-empty")
	}

	seen := make(map[string]int, len(p.Steps))
	for i, step := range p.Steps {
		if step.ID == "" {
			return fatal(plan.ErrInvalidPayload, fmt.Sprintf("step at index %d has empty id", i))
		}
		if _, dup := seen[step.ID]; dup {
			return fatal(plan.ErrInvalidPayload, fmt.Sprintf("duplicate step id %q", step.ID))
		}
		seen[step.ID] = i

		switch step.OnFailure {
		case plan.OnFailureHalt, plan.OnFailureSkip, plan.OnFailureRetry:
		default:
			return fatal(plan.ErrInvalidPayload, fmt.Sprintf("step %q has invalid on_failure %q", step.ID, step.OnFailure))
		}

		for _, dep := range step.DependsOn {
			depIdx, ok := seen[dep]
			if !ok || depIdx >= i {
				return fatal(plan.ErrDependencyUnresolved, fmt.Sprintf("step %q depends_on %q which is not a strictly earlier step", step.ID, dep))
			}
		}
	}
	return nil
}

// validateContext performs the pre-execution ExecutionContext validation of
// spec §4.14. Any failure is fatal.
func validateContext(p plan.Plan, ectx plan.ExecutionContext) *plan.ExecutionError {
	if ectx.ExecutionID == "" {
		return fatal(plan.ErrContextMissing, "execution_id must be non-empty")
	}
	if ectx.StartedAtMs <= 0 {
		return fatal(plan.ErrContextMissing, "started_at_ms must be positive")
	}
	if ectx.DeadlineMs <= 0 {
		return fatal(plan.ErrContextMissing, "deadline_ms must be positive")
	}
	if ectx.DeadlineMs <= ectx.StartedAtMs {
		return fatal(plan.ErrContextMissing, "deadline_ms must be greater than started_at_ms")
	}

	timeoutMs := p.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = plan.DefaultTimeoutMs
	}
	if ectx.DeadlineMs-ectx.StartedAtMs < timeoutMs {
		return fatal(plan.ErrContextMissing, fmt.Sprintf("execution window %dms is narrower than plan timeout %dms", ectx.DeadlineMs-ectx.StartedAtMs, timeoutMs))
	}

	for _, key := range p.ContextRequirements {
		if _, ok := ectx.Environment[key]; !ok {
			return fatal(plan.ErrContextMissing, fmt.Sprintf("context_requirements key %q not present in environment", key))
		}
	}
	return nil
}

func fatal(code, message string) *plan.ExecutionError {
	return plan.NewExecutionError(code, message, plan.SeverityFatal)
}
