package workflow

import "time"

// Stage identifies where a failed run stopped.
type Stage string

// Failure stages.
const (
	StageValidation Stage = "validation"
	StageMaxRetries Stage = "max_retries"
	StageFatal      Stage = "fatal"
)

// Result is the envelope returned to callers. On success Results is set and
// Error is empty; on failure Error and Stage are set and Results is empty.
type Result struct {
	RunID    string `json:"run_id"`
	Question string `json:"question"`
	Success  bool   `json:"success"`
	// SQL is the last statement the run produced, if any.
	SQL     string `json:"sql,omitempty"`
	Results string `json:"results,omitempty"`
	Error   string `json:"error,omitempty"`
	Stage   Stage  `json:"stage,omitempty"`

	Columns       []string      `json:"columns,omitempty"`
	Rows          [][]any       `json:"rows,omitempty"`
	RowCount      int           `json:"row_count"`
	RetryCount    int           `json:"retry_count"`
	Corrections   []Correction  `json:"corrections,omitempty"`
	ExecutionTime time.Duration `json:"execution_time_ns,omitempty"`
}

func (s *State) success(formatted string) *Result {
	r := s.envelope()
	r.Success = true
	r.Results = formatted
	if rs := s.Execution.Result; rs != nil {
		r.Columns = rs.Columns
		r.Rows = rs.Rows
		r.RowCount = len(rs.Rows)
		r.ExecutionTime = rs.Elapsed
	}
	return r
}

func (s *State) failure(stage Stage, msg string) *Result {
	r := s.envelope()
	r.Stage = stage
	r.Error = msg
	return r
}

func (s *State) envelope() *Result {
	return &Result{
		RunID:       s.RunID,
		Question:    s.Question,
		SQL:         s.SQL,
		RetryCount:  s.RetryCount,
		Corrections: s.Corrections,
	}
}

// Step returns the terminal step a result with this stage ended in.
func (s Stage) Step() Step {
	switch s {
	case "":
		return StepFormatting
	case StageValidation:
		return StepRejected
	case StageMaxRetries:
		return StepMaxRetriesExceeded
	default:
		return StepFatal
	}
}
