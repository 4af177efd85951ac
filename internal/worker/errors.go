package worker

import "fmt"

// ErrStorage signifies that a durable write failed, so the answer was not
// archived and nothing was dispatched.
type ErrStorage struct {
	Op  string
	Err error
}

func (e *ErrStorage) Error() string { return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err) }
func (e *ErrStorage) Unwrap() error { return e.Err }

// ErrSkipped signifies an answer that was archived but not dispatched,
// because it could not be classified or normalized.
type ErrSkipped struct {
	Reason string
	Err    error
}

func (e *ErrSkipped) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("skipped: %s", e.Reason)
	}
	return fmt.Sprintf("skipped: %s: %v", e.Reason, e.Err)
}
func (e *ErrSkipped) Unwrap() error { return e.Err }
