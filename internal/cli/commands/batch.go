package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/askql/internal/cli/output"
	"github.com/leapstack-labs/askql/internal/workflow"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// DemoQuestions are asked by askql batch --demo against the sample database.
var DemoQuestions = []string{
	"How many customers are there?",
	"Show me the top 5 most expensive products",
	"List all customers from New York",
	"What is the total revenue from all orders?",
	"Show customer names with their total spending",
}

// BatchOptions holds options for the batch command.
type BatchOptions struct {
	Demo        bool
	Concurrency int
	FailFast    bool
}

// BatchSummary is the JSON output of the batch command.
type BatchSummary struct {
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Skipped   int                `json:"skipped"`
	Results   []*workflow.Result `json:"results"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand() *cobra.Command {
	opts := &BatchOptions{}

	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Answer many questions",
		Long: `Answer every question in a file (one per line, # starts a comment), or
the built-in demo questions with --demo. Use "-" to read from stdin.

Questions run concurrently; results are printed in input order.`,
		Example: `  askql batch --demo
  askql batch questions.txt --concurrency 8 -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Demo, "demo", false, "Ask the built-in demo questions")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "c", 4, "Questions in flight at once")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "Stop starting new questions after the first failure")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string, opts *BatchOptions) error {
	questions, err := batchQuestions(cmd.InOrStdin(), args, opts.Demo)
	if err != nil {
		return err
	}
	if opts.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", opts.Concurrency)
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctrl, err := cc.NewController(cmd.Context())
	if err != nil {
		return err
	}

	results := make([]*workflow.Result, len(questions))
	eg, ctx := errgroup.WithContext(cmd.Context())
	eg.SetLimit(opts.Concurrency)
	for i, q := range questions {
		eg.Go(func() error {
			// Leave the slot empty once a failure has stopped the batch.
			if ctx.Err() != nil {
				return nil
			}
			res := ctrl.Run(ctx, q)
			results[i] = res
			if opts.FailFast && !res.Success {
				return &errRunFailed{stage: res.Stage}
			}
			return nil
		})
	}
	runErr := eg.Wait()

	summary := BatchSummary{Total: len(questions)}
	for _, res := range results {
		if res == nil {
			summary.Skipped++
			continue
		}
		summary.Results = append(summary.Results, res)
		if res.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	if cc.Renderer.Mode() == output.ModeJSON {
		if err := cc.Renderer.JSON(summary); err != nil {
			return err
		}
	} else {
		renderBatchText(cc.Renderer, summary, cc.Cfg.Verbose)
	}

	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d questions failed", summary.Failed, summary.Total)
	}
	return nil
}

func renderBatchText(r *output.Renderer, s BatchSummary, verbose bool) {
	rule := strings.Repeat("=", 60)
	for _, res := range s.Results {
		r.Println(rule)
		renderResultText(r, res, verbose)
	}
	r.Println(rule)
	r.Printf("%d questions: %s, %s", s.Total,
		r.Styles().Success.Render(fmt.Sprintf("%d succeeded", s.Succeeded)),
		r.Styles().Error.Render(fmt.Sprintf("%d failed", s.Failed)))
	if s.Skipped > 0 {
		r.Printf(", %s", r.Styles().Muted.Render(fmt.Sprintf("%d skipped", s.Skipped)))
	}
	r.Println()
}

func batchQuestions(stdin io.Reader, args []string, demo bool) ([]string, error) {
	if demo {
		if len(args) > 0 {
			return nil, fmt.Errorf("--demo does not take a file")
		}
		return DemoQuestions, nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("a question file or --demo is required")
	}

	var in io.Reader = stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to open questions: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	var questions []string
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions in %s", args[0])
	}
	return questions, nil
}
