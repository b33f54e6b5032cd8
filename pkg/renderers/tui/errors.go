package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrUnresolved is returned when issues remain after the last re-prompt
	// round.
	ErrUnresolved = errors.New("tui: configuration still invalid")
)
