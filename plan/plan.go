// Package plan defines the data model consumed by the plan scheduler (spec
// §3 "Plan", §4.14, component C14): an immutable DAG of steps with ordering
// constraints and per-step failure policies, plus the execution context and
// result types the scheduler produces.
package plan

// OnFailure names what the scheduler does when a step's dispatcher call
// fails (spec §4.14).
type OnFailure string

const (
	OnFailureHalt  OnFailure = "halt"
	OnFailureSkip  OnFailure = "skip"
	OnFailureRetry OnFailure = "retry"
)

// Severity classifies an ExecutionError (spec §3 "ExecutionError").
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
	SeverityFatal Severity = "fatal"
)

// Status is a PlanResult's terminal classification (spec §3 "PlanResult").
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
)

// Reserved error codes (spec §4.14). The parenthetical severity in the spec
// table is the default assigned when the scheduler itself originates the
// error (e.g. a pre-execution validation failure); a code surfaced from a
// step failure carries whatever severity that failure actually had (see
// DESIGN.md for the STEP_SKIPPED/EXECUTION_HALTED severity resolution).
const (
	ErrContextMissing       = "CONTEXT_MISSING"
	ErrInvalidPayload       = "INVALID_PAYLOAD"
	ErrStepTimeout          = "STEP_TIMEOUT"
	ErrPlanTimeout          = "PLAN_TIMEOUT"
	ErrDeadlineExceeded     = "DEADLINE_EXCEEDED"
	ErrDependencyUnresolved = "DEPENDENCY_UNRESOLVED"
	ErrActionNotFound       = "ACTION_NOT_FOUND"
	ErrResourceExhausted    = "RESOURCE_EXHAUSTED"
	ErrExecutionHalted      = "EXECUTION_HALTED"
	ErrStepSkipped          = "STEP_SKIPPED"
	ErrUnknownError         = "UNKNOWN_ERROR"
)

// RetryPolicy controls step-level retry behavior (spec §3). Reserved for
// on_failure=retry, which the scheduler treats as fatal in v1 (spec §4.14,
// §9 Open Question) — the fields exist so a future implementation can wire
// them in without changing the data model.
type RetryPolicy struct {
	MaxAttempts         int      `json:"max_attempts"`
	BackoffMs           int64    `json:"backoff_ms"`
	BackoffMultiplier   float64  `json:"backoff_multiplier"`
	MaxBackoffMs        int64    `json:"max_backoff_ms"`
	RetryableErrorCodes []string `json:"retryable_error_codes,omitempty"`
}

// DefaultRetryPolicy returns the spec-stated defaults (spec §3
// "RetryPolicy").
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, BackoffMs: 0, BackoffMultiplier: 1.0, MaxBackoffMs: 60_000}
}

// PlanStep is one node in a Plan's DAG (spec §3 "PlanStep").
type PlanStep struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Payload   any       `json:"payload,omitempty"`
	DependsOn []string  `json:"depends_on,omitempty"`
	OnFailure OnFailure `json:"on_failure"`
	TimeoutMs int64     `json:"timeout_ms,omitempty"`
}

// Plan is the scheduler's immutable input (spec §3 "Plan").
type Plan struct {
	ID                  string         `json:"id"`
	Version             int            `json:"version"`
	CreatedAtMs         int64          `json:"created_at_ms"`
	Name                string         `json:"name"`
	Steps               []PlanStep     `json:"steps"`
	ContextRequirements []string       `json:"context_requirements"`
	Priority            int            `json:"priority,omitempty"`
	TimeoutMs           int64          `json:"timeout_ms,omitempty"`
	RetryPolicy         *RetryPolicy   `json:"retry_policy,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	Tags                []string       `json:"tags,omitempty"`
	EstimatedDurationMs int64          `json:"estimated_duration_ms,omitempty"`
}

// DefaultTimeoutMs is the Plan.TimeoutMs default (spec §3).
const DefaultTimeoutMs = 300_000

// ExecutionContext is immutable during execution (spec §3
// "ExecutionContext"). The scheduler never introspects Environment's
// contents beyond the ContextRequirements presence check.
type ExecutionContext struct {
	Plan               Plan           `json:"-"`
	ExecutionID        string         `json:"execution_id"`
	StartedAtMs        int64          `json:"started_at_ms"`
	DeadlineMs         int64          `json:"deadline_ms"`
	Environment        map[string]any `json:"-"`
	ParentExecutionID  string         `json:"parent_execution_id,omitempty"`
	UserID             string         `json:"user_id,omitempty"`
	RequestID          string         `json:"request_id,omitempty"`
	CorrelationContext map[string]any `json:"correlation_context,omitempty"`
}

// ExecutionError reports why a plan did not fully succeed (spec §3
// "ExecutionError"). Recoverable is derived: fatal severity is never
// recoverable.
type ExecutionError struct {
	ErrorCode   string         `json:"error_code"`
	Message     string         `json:"message"`
	StepID      string         `json:"step_id,omitempty"`
	Severity    Severity       `json:"severity"`
	Recoverable bool           `json:"recoverable"`
	Cause       error          `json:"-"`
	Context     map[string]any `json:"context,omitempty"`
}

// NewExecutionError constructs an ExecutionError with Recoverable derived
// from severity (spec §3: "derived from severity: fatal ⇒ false").
func NewExecutionError(code, message string, severity Severity) *ExecutionError {
	return &ExecutionError{
		ErrorCode:   code,
		Message:     message,
		Severity:    severity,
		Recoverable: severity != SeverityFatal,
	}
}

// PlanResult is the scheduler's single return value (spec §3 "PlanResult").
type PlanResult struct {
	PlanID        string          `json:"plan_id"`
	ExecutionID   string          `json:"execution_id"`
	Status        Status          `json:"status"`
	CompletedAtMs int64           `json:"completed_at_ms"`
	DurationMs    int64           `json:"duration_ms"`
	StepsExecuted int             `json:"steps_executed"`
	StepsTotal    int             `json:"steps_total"`
	ResultPayload any             `json:"result_payload,omitempty"`
	Error         *ExecutionError `json:"error,omitempty"`
}

// DeriveStatus computes the deterministic status inference of spec §4.14 /
// §8 invariant 4: `status == "success" ⇔ error == null ∧ steps_executed ==
// steps_total`.
func DeriveStatus(err *ExecutionError, stepsExecuted, stepsTotal int) Status {
	if err == nil && stepsExecuted == stepsTotal {
		return StatusSuccess
	}
	if err != nil && err.Severity != SeverityFatal && stepsExecuted >= 1 {
		return StatusPartial
	}
	return StatusFailure
}
