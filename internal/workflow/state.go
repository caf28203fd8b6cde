package workflow

import (
	"github.com/google/uuid"
	"github.com/leapstack-labs/askql/internal/executor"
	"github.com/leapstack-labs/askql/internal/validator"
)

// Correction records one repair attempt.
type Correction struct {
	Attempt      int    `json:"attempt"`
	Error        string `json:"error"`
	FailedSQL    string `json:"failed_sql"`
	CorrectedSQL string `json:"corrected_sql,omitempty"`
}

// State is the mutable record of a single run. It is never shared between
// runs.
type State struct {
	RunID    string
	Question string
	Schema   string

	// SQL is the current candidate, replaced by generation and correction.
	SQL        string
	Validation validator.Outcome
	Execution  executor.Outcome
	// RetryCount only grows, and only when a correction starts.
	RetryCount int

	Corrections []Correction
	// Trace lists every step entered, in order.
	Trace []Step

	// tried holds every SQL text that has been executed.
	tried map[string]struct{}
	// fatal is the reason for a fatal termination.
	fatal string

	final *Result
}

func newState(question, schema string) *State {
	return &State{
		RunID:    uuid.NewString(),
		Question: question,
		Schema:   schema,
		tried:    make(map[string]struct{}),
	}
}

// Final returns the terminal envelope, or nil while the run is in flight.
func (s *State) Final() *Result {
	return s.final
}

// setFinal stores the envelope. Only the first call has an effect.
func (s *State) setFinal(r *Result) {
	if s.final == nil {
		s.final = r
	}
}
