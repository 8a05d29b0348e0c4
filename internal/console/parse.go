// Package console implements the single-letter operator commands: parsing,
// execution against the controller, and an interactive readline loop.
package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParse is returned for a command whose argument is malformed.
var ErrParse = errors.New("parse error")

// ErrUnknown is returned for a line that names no command.
var ErrUnknown = errors.New("unknown command")

// Op is an operator command.
type Op int

const (
	OpHelp Op = iota
	OpEnable
	OpDisable
	OpQuit
	OpRate
	OpExposure
	OpDelay
	OpStatus
)

func (o Op) String() string {
	switch o {
	case OpHelp:
		return "help"
	case OpEnable:
		return "enable"
	case OpDisable:
		return "disable"
	case OpQuit:
		return "quit"
	case OpRate:
		return "rate"
	case OpExposure:
		return "exposure"
	case OpDelay:
		return "delay"
	case OpStatus:
		return "status"
	}
	return "unknown"
}

// Command is a parsed operator line.
type Command struct {
	Op    Op
	Rate  float64 // OpRate, Hz
	Value int     // OpExposure, OpDelay: µs
}

// Parse decodes one operator line. The first character selects the command;
// r, e and d take the rest of the line as their argument. Letter case is
// significant for E, D, r, e and d.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("empty line: %w", ErrUnknown)
	}
	arg := strings.TrimSpace(line[1:])

	switch line[0] {
	case 'h', 'H':
		return Command{Op: OpHelp}, nil
	case 'E':
		return Command{Op: OpEnable}, nil
	case 'D':
		return Command{Op: OpDisable}, nil
	case 'q', 'Q':
		return Command{Op: OpQuit}, nil
	case 's', 'S':
		return Command{Op: OpStatus}, nil
	case 'r':
		rate, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return Command{}, fmt.Errorf("read rate %q: %w", arg, ErrParse)
		}
		return Command{Op: OpRate, Rate: rate}, nil
	case 'e':
		v, err := strconv.Atoi(arg)
		if err != nil {
			return Command{}, fmt.Errorf("read exposure %q: %w", arg, ErrParse)
		}
		return Command{Op: OpExposure, Value: v}, nil
	case 'd':
		v, err := strconv.Atoi(arg)
		if err != nil {
			return Command{}, fmt.Errorf("read delay %q: %w", arg, ErrParse)
		}
		return Command{Op: OpDelay, Value: v}, nil
	}
	return Command{}, fmt.Errorf("%q: %w", line, ErrUnknown)
}
