package engine

import "errors"

// ErrDuplicateWorkflow is returned by StartWorkflow when an execution
// with the same dedup key already exists. Callers treat it as success:
// the earlier start owns the record.
var ErrDuplicateWorkflow = errors.New("workflow already started for this record")

// TerminalError marks a failure that must not be retried: structural
// validation gaps, unrecognized event types, anything redelivery cannot
// fix. The workflow is marked failed immediately.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return "terminal: " + e.Err.Error() }

func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal wraps err as non-retryable.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

// IsTerminal reports whether err carries a TerminalError anywhere in its
// chain.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}
