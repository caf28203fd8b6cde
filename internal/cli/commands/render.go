package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/askql/internal/cli/output"
	"github.com/leapstack-labs/askql/internal/workflow"
)

// renderResult prints one workflow envelope in the renderer's mode.
func renderResult(r *output.Renderer, res *workflow.Result, verbose bool) error {
	if r.Mode() == output.ModeJSON {
		return r.JSON(res)
	}
	renderResultText(r, res, verbose)
	return nil
}

func renderResultText(r *output.Renderer, res *workflow.Result, verbose bool) {
	styles := r.Styles()

	r.Println(styles.Header1.Render("Question: ") + res.Question)
	if res.SQL != "" {
		r.Println(styles.Bold.Render("SQL:"))
		for _, line := range strings.Split(res.SQL, "\n") {
			r.Println("  " + styles.Code.Render(line))
		}
	}

	if verbose && len(res.Corrections) > 0 {
		r.Println(styles.Bold.Render("Corrections:"))
		for _, c := range res.Corrections {
			r.Printf("  %s %s\n", styles.Warning.Render(fmt.Sprintf("#%d", c.Attempt)), c.Error)
			r.Println(styles.Muted.Render("     failed:    " + oneLine(c.FailedSQL)))
			if c.CorrectedSQL != "" {
				r.Println(styles.Muted.Render("     corrected: " + oneLine(c.CorrectedSQL)))
			}
		}
	}

	if res.Success {
		r.Println(styles.Success.Render("Results:"))
		r.Println(res.Results)
		if verbose {
			r.Println(styles.Muted.Render(fmt.Sprintf("(%s, run %s)", res.ExecutionTime, res.RunID)))
		}
	} else {
		r.Println(styles.Error.Render(fmt.Sprintf("Error (%s):", res.Stage)) + " " + res.Error)
	}

	if res.RetryCount > 0 {
		r.Println(styles.Muted.Render(fmt.Sprintf("Retries: %d", res.RetryCount)))
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// errRunFailed is returned by commands whose workflow did not succeed, so
// the process exits non-zero after the envelope has been printed.
type errRunFailed struct {
	stage workflow.Stage
}

func (e *errRunFailed) Error() string {
	return fmt.Sprintf("query failed at %s stage", e.stage)
}
