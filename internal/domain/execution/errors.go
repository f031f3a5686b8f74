package execution

import "errors"

var (
	// ErrFetchReport is returned when an execution report cannot be fetched.
	ErrFetchReport = errors.New("fetch execution report")
	// ErrExecutionTimeout is returned when an execution never reaches the
	// terminal stage within the attempt budget.
	ErrExecutionTimeout = errors.New("execution did not complete")
)
