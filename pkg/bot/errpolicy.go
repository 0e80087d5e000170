package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrorMode selects how a failure inside a handler or listener is
// surfaced. Exactly one mode is active at a time.
type ErrorMode int

const (
	// ModeSilent sends a fixed generic message to the chat. Default.
	ModeSilent ErrorMode = iota
	// ModeEchoException sends the error text to the chat.
	ModeEchoException
	// ModeEchoTraceback sends the full stack trace to the chat.
	ModeEchoTraceback
	// ModePropagate stops the engine and re-raises to Run's caller.
	ModePropagate
)

func (m ErrorMode) String() string {
	switch m {
	case ModeEchoException:
		return "echo-exception"
	case ModeEchoTraceback:
		return "echo-traceback"
	case ModePropagate:
		return "propagate"
	default:
		return "silent"
	}
}

// ErrorModeFromFlags maps the three configuration flags to a mode.
// Precedence when several are set: propagate, then exception, then
// traceback, then silent.
func ErrorModeFromFlags(debugException, debugTraceback, disableErrorHandling bool) ErrorMode {
	switch {
	case disableErrorHandling:
		return ModePropagate
	case debugException:
		return ModeEchoException
	case debugTraceback:
		return ModeEchoTraceback
	default:
		return ModeSilent
	}
}

const unknownErrorText = "An unknown error occurred"

// PanicError wraps a panic recovered from a handler or listener so the
// error policy can report the original stack.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// safeCall runs fn, converting a panic into a *PanicError so one
// misbehaving handler cannot take down the dispatch loop.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// errorPolicy applies the active ErrorMode to a handler failure. send
// delivers text to the chat best-effort.
type errorPolicy struct {
	mode ErrorMode
	send func(ctx context.Context, text string)
}

// handle surfaces err according to the mode. The returned error is
// non-nil only in propagate mode, where the caller must stop the engine
// and hand the original error back to Run's caller.
func (p *errorPolicy) handle(ctx context.Context, err error) error {
	switch p.mode {
	case ModePropagate:
		return err
	case ModeEchoException:
		p.send(ctx, fmt.Sprintf("Error occurred:\n %v", err))
	case ModeEchoTraceback:
		p.send(ctx, fmt.Sprintf("Error occurred:\n %s", traceOf(err)))
	default:
		p.send(ctx, unknownErrorText)
	}
	return nil
}

// traceOf returns the best stack trace available for err: the recovered
// stack for panics. A plain returned error carries no stack of its own,
// so the fallback is the current stack, which shows the dispatch frames
// rather than where inside the handler the error was produced.
func traceOf(err error) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		return fmt.Sprintf("%v\n%s", pe.Value, pe.Stack)
	}
	return fmt.Sprintf("%v\n%s", err, debug.Stack())
}
