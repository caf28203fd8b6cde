package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/askql/internal/workflow"
	"github.com/spf13/cobra"
)

const replPrompt = "askql> "

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Ask questions interactively",
		Long: `Start an interactive session. Each line is a question; dot-commands
inspect the session. The connection and schema are loaded once.`,
		Args: cobra.NoArgs,
		RunE: runREPL,
	}
}

func runREPL(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := cc.LoadSchema(ctx)
	if err != nil {
		return err
	}
	ctrl, err := cc.NewControllerWithSchema(s.Describe())
	if err != nil {
		return err
	}

	var tables []string
	for _, t := range s.Tables {
		tables = append(tables, t.Name)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(cc.Cfg.ProjectRoot, ".askql_history"),
		AutoComplete:    newREPLCompleter(tables),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	session := &replSession{
		cc:      cc,
		ctrl:    ctrl,
		schema:  s.Describe(),
		tables:  tables,
		verbose: cc.Cfg.Verbose,
	}

	cc.Renderer.Printf("askql (%s, %d tables)\n", cc.Adapter.DialectName(), len(tables))
	cc.Renderer.Println("Type a question, .help for commands, .quit to exit")
	cc.Renderer.Println()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if quit := session.dot(line); quit {
				return nil
			}
			continue
		}
		session.ask(ctx, line)
	}
}

type replSession struct {
	cc      *CommandContext
	ctrl    *workflow.Controller
	schema  string
	tables  []string
	verbose bool
	last    *workflow.Result
}

func (s *replSession) ask(ctx context.Context, question string) {
	res := s.ctrl.Run(ctx, question)
	s.last = res
	if err := renderResult(s.cc.Renderer, res, s.verbose); err != nil {
		s.cc.Renderer.Errorf("Error: %v\n", err)
	}
	s.cc.Renderer.Println()
}

// dot handles a dot-command and reports whether the session should end.
func (s *replSession) dot(line string) bool {
	r := s.cc.Renderer
	parts := strings.Fields(line)

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(r.Writer())
	case ".schema":
		r.Println(s.schema)
	case ".tables":
		for _, t := range s.tables {
			r.Println(t)
		}
	case ".verbose":
		s.verbose = !s.verbose
		r.Printf("verbose: %v\n", s.verbose)
	case ".last":
		if s.last == nil {
			r.Println("no question asked yet")
			break
		}
		if err := r.JSON(s.last); err != nil {
			r.Errorf("Error: %v\n", err)
		}
	case ".clear":
		r.Printf("\033[H\033[2J")
	default:
		r.Errorf("Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .schema         Show the schema sent to the model
  .tables         List tables
  .verbose        Toggle correction details
  .last           Print the last result as JSON
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Anything else is asked as a question.
`
	_, _ = fmt.Fprintln(w, help)
}

// newREPLCompleter completes dot-commands and table names.
func newREPLCompleter(tables []string) *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".schema"),
		readline.PcItem(".tables"),
		readline.PcItem(".verbose"),
		readline.PcItem(".last"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	}
	for _, t := range tables {
		items = append(items, readline.PcItem(t))
	}
	return readline.NewPrefixCompleter(items...)
}
