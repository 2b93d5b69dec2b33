package dice

import (
	"errors"
	"fmt"
)

// Evaluation failure causes, matched with errors.Is.
var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrRollLimit      = errors.New("roll limit exceeded")
)

// InvalidExpressionError reports notation that cannot be compiled. It is the
// only error Compile returns; no partial tree accompanies it.
type InvalidExpressionError struct {
	Input    string // the complete notation being compiled
	Fragment string // the offending part of Input, when known
	Pos      int    // byte offset of Fragment in Input
	Reason   string
}

// Error implements the error interface.
func (e *InvalidExpressionError) Error() string {
	if e.Fragment != "" && e.Fragment != e.Input {
		return fmt.Sprintf("invalid expression %q: %s (at %q, position %d)", e.Input, e.Reason, e.Fragment, e.Pos)
	}
	return fmt.Sprintf("invalid expression %q: %s", e.Input, e.Reason)
}

// EvaluationError reports a failure while rolling a compiled expression.
type EvaluationError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("evaluation error: %v", e.Err)
	}
	return fmt.Sprintf("evaluation error: %v: %s", e.Err, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// NewZeroDivisionError creates an EvaluationError for a zero divisor.
func NewZeroDivisionError(dividend int) *EvaluationError {
	return &EvaluationError{Reason: fmt.Sprintf("%d / 0", dividend), Err: ErrDivisionByZero}
}

// NewRollLimitError creates an EvaluationError for a roller that ran out of rolls.
func NewRollLimitError(limit int) *EvaluationError {
	return &EvaluationError{Reason: fmt.Sprintf("more than %d dice rolled", limit), Err: ErrRollLimit}
}

// IsInvalidExpression reports whether err is or wraps an InvalidExpressionError.
func IsInvalidExpression(err error) bool {
	var ie *InvalidExpressionError
	return errors.As(err, &ie)
}

// IsEvaluationError reports whether err is or wraps an EvaluationError.
func IsEvaluationError(err error) bool {
	var ee *EvaluationError
	return errors.As(err, &ee)
}
