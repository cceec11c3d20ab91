package term

import "fmt"

// Evaluator produces the response text for one submitted line. Command
// dispatch proper lives outside the line discipline; sessions only require
// that responses are deterministic for a given input.
type Evaluator interface {
	Evaluate(line string) string
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc func(line string) string

func (f EvaluatorFunc) Evaluate(line string) string {
	return f(line)
}

// BuiltinEvaluator answers a small fixed command set and reports everything
// else as unknown.
func BuiltinEvaluator() Evaluator {
	return EvaluatorFunc(func(line string) string {
		switch line {
		case "help":
			return "commands: help, version, whoami, history"
		case "version":
			return "termctl 0.1.0"
		case "whoami":
			return "guest"
		default:
			return fmt.Sprintf("unknown command: %s", line)
		}
	})
}
