package flow

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every error that describes a badly wired flow
	// or a delta that does not fit the declared state.
	ErrConfiguration      = errors.New("flow: configuration error")
	ErrDuplicateStep      = errors.New("flow: duplicate step")
	ErrUnknownPredecessor = errors.New("flow: unknown predecessor")
	ErrUnknownField       = errors.New("flow: unknown state field")
	ErrFieldType          = errors.New("flow: state field type mismatch")
	ErrUnresolvedRoute    = errors.New("flow: unresolved route")
	ErrLoopLimit          = errors.New("flow: loop limit exceeded")
	ErrStepExecution      = errors.New("flow: step failed")
)

// ConfigurationError reports a problem with how a flow was declared.
type ConfigurationError struct {
	Step string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("flow configuration: %v", e.Err)
	}
	return fmt.Sprintf("flow configuration: step %q: %v", e.Step, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

type DuplicateStepError struct {
	Step string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("flow: step %q is already registered", e.Step)
}

func (e *DuplicateStepError) Is(target error) bool {
	return target == ErrDuplicateStep || target == ErrConfiguration
}

type UnknownPredecessorError struct {
	Step        string
	Predecessor string
}

func (e *UnknownPredecessorError) Error() string {
	return fmt.Sprintf("flow: step %q depends on unknown step %q", e.Step, e.Predecessor)
}

func (e *UnknownPredecessorError) Is(target error) bool {
	return target == ErrUnknownPredecessor || target == ErrConfiguration
}

// UnresolvedRouteError is returned when a router produces a label that is
// neither in its route table nor the terminate label.
type UnresolvedRouteError struct {
	Router string
	Label  string
}

func (e *UnresolvedRouteError) Error() string {
	return fmt.Sprintf("flow: router %q returned unknown label %q", e.Router, e.Label)
}

func (e *UnresolvedRouteError) Is(target error) bool {
	return target == ErrUnresolvedRoute || target == ErrConfiguration
}

type LoopLimitError struct {
	Step  string
	Runs  int
	Limit int
	Err   error
}

func (e *LoopLimitError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("flow: step %q would run %d times, limit is %d re-entries", e.Step, e.Runs, e.Limit)
	}
	return fmt.Sprintf("flow: step %q stopped by re-entry guard after %d runs: %v", e.Step, e.Runs, e.Err)
}

func (e *LoopLimitError) Unwrap() error { return e.Err }

func (e *LoopLimitError) Is(target error) bool { return target == ErrLoopLimit }

// StepExecutionError wraps the failure of a step body. State holds the flow
// state as of the last successful merge.
type StepExecutionError struct {
	Flow  string
	Step  string
	Err   error
	State Snapshot
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("flow %q: step %q failed: %v", e.Flow, e.Step, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

func (e *StepExecutionError) Is(target error) bool { return target == ErrStepExecution }
