package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/leapstack-labs/askql/internal/workflow"
	"github.com/starfederation/datastar-go/datastar"
)

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Question string `json:"question"`
}

// SchemaResponse is the body of GET /api/schema.
type SchemaResponse struct {
	Schema string `json:"schema"`
}

// ErrorResponse is the body of 4xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SchemaResponse{Schema: s.current().Schema()})
}

// handleQuery runs one workflow. Workflow failures are still 200: the
// envelope carries success=false and the stage.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "question is required"})
		return
	}

	res := s.current().RunObserved(r.Context(), question, nil)
	s.logger.Info("query answered",
		"run_id", res.RunID,
		"success", res.Success,
		"stage", res.Stage)
	writeJSON(w, http.StatusOK, res)
}

// streamSignals is the client state patched while a run progresses.
type streamSignals struct {
	Step       workflow.Step    `json:"step"`
	SQL        string           `json:"sql,omitempty"`
	RetryCount int              `json:"retryCount"`
	Done       bool             `json:"done"`
	Result     *workflow.Result `json:"result,omitempty"`
}

// handleQueryStream runs one workflow and streams each transition as a
// datastar signal patch, ending with the result.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := datastar.ReadSignals(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid signals: " + err.Error()})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "question is required"})
		return
	}

	sse := datastar.NewSSE(w, r)
	res := s.current().RunObserved(r.Context(), question, func(tr workflow.Transition) {
		if err := sse.MarshalAndPatchSignals(streamSignals{
			Step:       tr.To,
			SQL:        tr.SQL,
			RetryCount: tr.RetryCount,
		}); err != nil {
			s.logger.Debug("stream client gone", "run_id", tr.RunID, "error", err)
		}
	})
	if err := sse.MarshalAndPatchSignals(streamSignals{
		Step:       res.Stage.Step(),
		SQL:        res.SQL,
		RetryCount: res.RetryCount,
		Done:       true,
		Result:     res,
	}); err != nil {
		s.logger.Debug("stream client gone", "run_id", res.RunID, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
