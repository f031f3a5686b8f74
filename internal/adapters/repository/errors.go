package repository

import "errors"

// Sentinel kinds for history errors.
var (
	ErrOpen         = errors.New("open history store")
	ErrDuplicateRun = errors.New("run already archived")
	ErrEmptyRunID   = errors.New("run id is empty")
	ErrInvalidLimit = errors.New("invalid run limit")
)
