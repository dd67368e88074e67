package state

import "fmt"

// PersistenceError wraps a failure from the state store, carrying the
// name of the failing operation so callers can distinguish "the store is
// unreachable" from "this particular write failed" without parsing
// driver-specific error strings.
type PersistenceError struct {
	Op  string // short operation name, e.g. "insert-run"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("state: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
