// Package recovery implements the Recovery Manager: given a stage failure
// and the state it occurred in, produce a classification and answer
// whether the run should retry. StageError is the structured failure every
// stage handler reports; it pins the stage the failure occurred in and
// preserves the cause chain for errors.Is/As.
package recovery

import "github.com/DaniyalFaraz2003/OSC-Agent/workflow"

// StageError is a stage handler's failure: the stage it occurred in, a
// short description of the failing operation, and the underlying cause, if
// any. Classify reads the stage for fix-cycle targeting and matches its
// patterns against the rendered message, cause text included.
type StageError struct {
	Stage   workflow.State
	Message string
	Err     error
}

// NewStageError constructs a StageError with no underlying cause, for
// failures a handler detects itself (a failed build, a rejected patch).
func NewStageError(stage workflow.State, message string) *StageError {
	return &StageError{Stage: stage, Message: message}
}

// Wrap constructs a StageError around a collaborator's error, naming the
// operation that failed.
func Wrap(stage workflow.State, message string, err error) *StageError {
	return &StageError{Stage: stage, Message: message, Err: err}
}

// Error renders the message followed by the cause. The cause text stays in
// the rendered form so the Manager's substring pattern matching still sees
// it through however many wrapping layers a handler adds.
func (e *StageError) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

// Unwrap supports errors.Is/As over the cause chain.
func (e *StageError) Unwrap() error { return e.Err }
