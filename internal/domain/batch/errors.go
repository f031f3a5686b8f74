package batch

import "errors"

var (
	// ErrNoMonitors is returned when Run is called without any monitor to trigger.
	ErrNoMonitors = errors.New("no monitors to trigger")
	// ErrTrigger is returned when the batch trigger request fails.
	ErrTrigger = errors.New("trigger batch")
	// ErrBatchStatus is returned when the batch status cannot be fetched.
	ErrBatchStatus = errors.New("get batch status")
	// ErrBatchFailed is returned when the platform reports the batch failed.
	ErrBatchFailed = errors.New("batch failed")
	// ErrUnhandledTriggeringProblem is returned for triggering problems that
	// a retrigger cannot fix.
	ErrUnhandledTriggeringProblem = errors.New("unhandled triggering problem")
	// ErrSyncRetriesExhausted is returned when monitors keep synchronizing
	// beyond the retry budget.
	ErrSyncRetriesExhausted = errors.New("sync retries exhausted")
	// ErrBatchTimeout is returned when the batch does not settle within the
	// poll budget.
	ErrBatchTimeout = errors.New("batch did not settle")
)
