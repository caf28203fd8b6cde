package workflow

import "fmt"

// Step is a node of the workflow state machine.
type Step string

// Workflow steps. Rejected, MaxRetriesExceeded, Fatal and Formatting are
// terminal.
const (
	StepStart              Step = "start"
	StepGenerating         Step = "generating"
	StepValidating         Step = "validating"
	StepExecuting          Step = "executing"
	StepCorrecting         Step = "correcting"
	StepFormatting         Step = "formatting"
	StepRejected           Step = "rejected"
	StepMaxRetriesExceeded Step = "max_retries_exceeded"
	StepFatal              Step = "fatal"
)

// Event is the tagged outcome of a step.
type Event string

// Workflow events.
const (
	EventInvoked     Event = "invoked"
	EventSQLProduced Event = "sql_produced"
	EventOracleError Event = "oracle_error"
	EventValid       Event = "valid"
	EventInvalid     Event = "invalid"
	EventSuccess     Event = "success"
	EventFailure     Event = "failure"
	EventExhausted   Event = "failure_exhausted"
	EventNoProgress  Event = "no_progress"
	EventCancelled   Event = "cancelled"
)

// transitions is the complete routing table. A (step, event) pair missing
// from it is a programming error and ends the run as fatal.
var transitions = map[Step]map[Event]Step{
	StepStart: {
		EventInvoked:   StepGenerating,
		EventCancelled: StepFatal,
	},
	StepGenerating: {
		EventSQLProduced: StepValidating,
		EventOracleError: StepFatal,
		EventCancelled:   StepFatal,
	},
	StepValidating: {
		EventValid:     StepExecuting,
		EventInvalid:   StepRejected,
		EventCancelled: StepFatal,
	},
	StepExecuting: {
		EventSuccess:   StepFormatting,
		EventFailure:   StepCorrecting,
		EventExhausted: StepMaxRetriesExceeded,
		EventCancelled: StepFatal,
	},
	StepCorrecting: {
		EventSQLProduced: StepValidating,
		EventOracleError: StepFatal,
		EventNoProgress:  StepMaxRetriesExceeded,
		EventCancelled:   StepFatal,
	},
}

// Terminal reports whether s has no outgoing edges.
func (s Step) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// next looks up the successor of from on ev.
func next(from Step, ev Event) (Step, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return StepFatal, fmt.Errorf("no transition from %s on %s", from, ev)
	}
	return to, nil
}
