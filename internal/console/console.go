package console

import (
	"context"
	"fmt"
	"io"

	"github.com/chzyer/readline"
)

// Shutdown reasons reported by Run.
const (
	ReasonQuit      = "QUIT"
	ReasonEOF       = "EOF"
	ReasonInterrupt = "INTERRUPT"
)

// Console is the interactive operator prompt.
type Console struct {
	rl   *readline.Instance
	ctrl Controller
}

// New creates a Console on the terminal.
func New(ctrl Controller) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pulse> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "q",
	})
	if err != nil {
		return nil, fmt.Errorf("create readline: %w", err)
	}
	return &Console{rl: rl, ctrl: ctrl}, nil
}

// Stdout returns a writer that coordinates with the prompt. Use it for log
// output so log lines do not garble the input line.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Close releases the terminal and unblocks a pending Run.
func (c *Console) Close() error {
	return c.rl.Close()
}

// Run reads and executes commands until the operator quits, input ends or
// ctx is cancelled. It returns the shutdown reason, or "" when ctx ended
// first.
func (c *Console) Run(ctx context.Context) string {
	defer c.rl.Close()

	out := c.rl.Stdout()
	PrintHelp(out)

	for {
		line, err := c.rl.Readline()
		if ctx.Err() != nil {
			return ""
		}
		switch {
		case err == readline.ErrInterrupt:
			c.ctrl.Disable()
			fmt.Fprintln(out, "interrupted")
			return ReasonInterrupt
		case err != nil:
			c.ctrl.Disable()
			return ReasonEOF
		}

		if Line(out, c.ctrl, line) {
			return ReasonQuit
		}
	}
}
